package observability

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// family is one named metric with a fixed label set. Series are keyed by the
// rendered label block so the text exposition can be written directly.
type family struct {
	name   string
	help   string
	kind   string
	labels []string

	mu     sync.Mutex
	series map[string]float64
}

func newFamily(name, help, kind string, labels []string) family {
	return family{name: name, help: help, kind: kind, labels: labels, series: map[string]float64{}}
}

func (f *family) update(values []string, fn func(float64) float64) {
	key := labelBlock(f.labels, values)
	f.mu.Lock()
	f.series[key] = fn(f.series[key])
	f.mu.Unlock()
}

func (f *family) writeTo(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind); err != nil {
		return err
	}
	f.mu.Lock()
	keys := sortedKeys(f.series)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, f.name+k+" "+formatValue(f.series[k]))
	}
	f.mu.Unlock()
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

type CounterVec struct{ f family }

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{f: newFamily(name, help, "counter", labels)}
}

func (c *CounterVec) Inc(values ...string) { c.Add(1, values...) }

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil || v < 0 {
		return
	}
	c.f.update(values, func(cur float64) float64 { return cur + v })
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	return c.f.writeTo(w)
}

// Counter is a CounterVec without labels.
type Counter struct{ CounterVec }

func NewCounter(name, help string) *Counter {
	return &Counter{CounterVec{f: newFamily(name, help, "counter", nil)}}
}

func (c *Counter) Inc() {
	if c != nil {
		c.CounterVec.Add(1)
	}
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	return c.f.writeTo(w)
}

type GaugeVec struct{ f family }

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{f: newFamily(name, help, "gauge", labels)}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	g.f.update(values, func(float64) float64 { return v })
}

func (g *GaugeVec) Add(v float64, values ...string) {
	if g == nil {
		return
	}
	g.f.update(values, func(cur float64) float64 { return cur + v })
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	return g.f.writeTo(w)
}

// Gauge is a GaugeVec without labels.
type Gauge struct{ GaugeVec }

func NewGauge(name, help string) *Gauge {
	return &Gauge{GaugeVec{f: newFamily(name, help, "gauge", nil)}}
}

func (g *Gauge) Set(v float64) {
	if g != nil {
		g.GaugeVec.Set(v)
	}
}

func (g *Gauge) Inc() {
	if g != nil {
		g.GaugeVec.Add(1)
	}
}

func (g *Gauge) Dec() {
	if g != nil {
		g.GaugeVec.Add(-1)
	}
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	return g.f.writeTo(w)
}

var defaultBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// HistogramVec keeps cumulative bucket counts per label set.
type HistogramVec struct {
	name    string
	help    string
	labels  []string
	buckets []float64

	mu     sync.Mutex
	series map[string]*histogram
}

type histogram struct {
	counts []uint64 // cumulative, one per bucket
	sum    float64
	total  uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	return &HistogramVec{name: name, help: help, labels: labels, buckets: buckets, series: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	key := labelBlock(h.labels, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.series[key]
	if !ok {
		s = &histogram{counts: make([]uint64, len(h.buckets))}
		h.series[key] = s
	}
	s.sum += v
	s.total++
	for i, upper := range h.buckets {
		if v <= upper {
			s.counts[i]++
		}
	}
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	h.mu.Lock()
	keys := make([]string, 0, len(h.series))
	for k := range h.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := h.series[k]
		for i, upper := range h.buckets {
			fmt.Fprintf(&b, "%s_bucket%s %d\n", h.name, withLe(k, formatValue(upper)), s.counts[i])
		}
		fmt.Fprintf(&b, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), s.total)
		fmt.Fprintf(&b, "%s_sum%s %s\n", h.name, k, formatValue(s.sum))
		fmt.Fprintf(&b, "%s_count%s %d\n", h.name, k, s.total)
	}
	h.mu.Unlock()
	_, err := io.WriteString(w, b.String())
	return err
}

// labelBlock renders {a="x",b="y"}. Missing values become "unknown".
func labelBlock(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, len(names))
	for i, name := range names {
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		parts[i] = name + `="` + escapeLabel(val) + `"`
	}
	return "{" + strings.Join(parts, ",") + "}"
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escapeLabel(v string) string { return labelEscaper.Replace(v) }

func withLe(block, le string) string {
	if block == "" {
		return `{le="` + le + `"}`
	}
	return strings.TrimSuffix(block, "}") + `,le="` + le + `"}`
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isServerError(status string) bool {
	return len(status) == 3 && status[0] == '5'
}
