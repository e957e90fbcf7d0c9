package export

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/yungbote/politicas-backend/internal/domain/policy"
)

//go:embed templates/policy.html.tmpl
var templateFS embed.FS

var policyHTML = template.Must(template.ParseFS(templateFS, "templates/policy.html.tmpl"))

type htmlRenderer struct{}

func NewHTMLRenderer() Renderer { return htmlRenderer{} }

func (htmlRenderer) Format() policy.Format { return policy.FormatHTML }
func (htmlRenderer) ContentType() string   { return "text/html; charset=utf-8" }
func (htmlRenderer) Extension() string     { return "html" }

func (htmlRenderer) Render(doc Document, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	err := policyHTML.Execute(&buf, struct {
		Doc           Document
		Watermark     bool
		WatermarkText string
		Date          string
	}{
		Doc:           doc,
		Watermark:     opts.Watermark,
		WatermarkText: WatermarkText,
		Date:          spanishDate(doc.GeneratedAt),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
