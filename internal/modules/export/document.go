package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/modules/wizard"
)

// Entry is one labelled answer. Multi-valued answers use Items.
type Entry struct {
	Label string
	Value string
	Items []string
}

type Section struct {
	Number  int
	Title   string
	Summary string
	Entries []Entry
}

// Document is the format-neutral rendering model of a policy.
type Document struct {
	Title       string
	Company     string
	GeneratedAt time.Time
	Sections    []Section
}

// companyKey is read from step 1 to label the document.
const companyKey = "razon_social"

// BuildDocument lays out the stored payloads in catalog order. Steps without a
// payload are skipped; unknown keys are appended after the catalog fields.
func BuildDocument(name string, payloads policy.StepPayloads, generatedAt time.Time) Document {
	doc := Document{Title: strings.TrimSpace(name), GeneratedAt: generatedAt}
	if doc.Title == "" {
		doc.Title = "Política de Privacidad"
	}

	for _, step := range wizard.Catalog() {
		raw, ok := payloads[strconv.Itoa(step.Number)]
		if !ok || len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		sec := Section{Number: step.Number, Title: step.Title, Summary: step.Summary}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			value, items := renderValue(raw)
			sec.Entries = append(sec.Entries, Entry{Label: step.Title, Value: value, Items: items})
			doc.Sections = append(doc.Sections, sec)
			continue
		}

		used := map[string]bool{}
		for _, f := range step.Fields {
			v, ok := obj[f.Key]
			if !ok {
				continue
			}
			used[f.Key] = true
			if e, ok := makeEntry(f.Label, v); ok {
				sec.Entries = append(sec.Entries, e)
			}
		}
		var extra []string
		for k := range obj {
			if !used[k] {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			if e, ok := makeEntry(humanize(k), obj[k]); ok {
				sec.Entries = append(sec.Entries, e)
			}
		}

		if step.Number == 1 {
			if v, ok := obj[companyKey]; ok {
				doc.Company, _ = renderValue(v)
			}
		}
		if len(sec.Entries) > 0 {
			doc.Sections = append(doc.Sections, sec)
		}
	}
	return doc
}

func makeEntry(label string, raw json.RawMessage) (Entry, bool) {
	value, items := renderValue(raw)
	if value == "" && len(items) == 0 {
		return Entry{}, false
	}
	return Entry{Label: label, Value: value, Items: items}, true
}

// renderValue turns a JSON value into display text. Arrays become items,
// objects become "key: value" items, booleans become Sí/No.
func renderValue(raw json.RawMessage) (string, []string) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return strings.TrimSpace(string(raw)), nil
	}
	switch t := v.(type) {
	case []any:
		var items []string
		for _, it := range t {
			if s := scalar(it); s != "" {
				items = append(items, s)
			}
		}
		return "", items
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var items []string
		for _, k := range keys {
			if s := scalar(t[k]); s != "" {
				items = append(items, humanize(k)+": "+s)
			}
		}
		return "", items
	default:
		return scalar(t), nil
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		if t {
			return "Sí"
		}
		return "No"
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, it := range t {
			if s := scalar(it); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// humanize turns snake_case keys into "Snake case".
func humanize(key string) string {
	s := strings.TrimSpace(strings.ReplaceAll(key, "_", " "))
	if s == "" {
		return key
	}
	r := []rune(s)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}

// Plain flattens an entry for line-based renderers.
func (e Entry) Plain() string {
	if len(e.Items) == 0 {
		return e.Value
	}
	return "• " + strings.Join(e.Items, "\n• ")
}
