package export

import (
	"fmt"

	"github.com/yungbote/politicas-backend/internal/domain/policy"
)

const WatermarkText = "VERSIÓN GRATUITA"

type Options struct {
	Watermark bool
}

type Renderer interface {
	Format() policy.Format
	ContentType() string
	Extension() string
	Render(doc Document, opts Options) ([]byte, error)
}

type Registry struct {
	byFormat map[policy.Format]Renderer
}

func NewRegistry(renderers ...Renderer) *Registry {
	r := &Registry{byFormat: make(map[policy.Format]Renderer, len(renderers))}
	for _, rr := range renderers {
		r.byFormat[rr.Format()] = rr
	}
	return r
}

// DefaultRegistry wires the PDF, DOCX and HTML renderers.
func DefaultRegistry() *Registry {
	return NewRegistry(NewPDFRenderer(), NewDOCXRenderer(), NewHTMLRenderer())
}

func (r *Registry) Get(f policy.Format) (Renderer, error) {
	rr, ok := r.byFormat[f]
	if !ok {
		return nil, fmt.Errorf("no renderer for format %q", f)
	}
	return rr, nil
}
