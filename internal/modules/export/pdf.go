package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/yungbote/politicas-backend/internal/domain/policy"
)

var monthsES = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}

func spanishDate(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return fmt.Sprintf("%d de %s de %d", t.Day(), monthsES[t.Month()-1], t.Year())
}

type pdfRenderer struct{}

func NewPDFRenderer() Renderer { return pdfRenderer{} }

func (pdfRenderer) Format() policy.Format { return policy.FormatPDF }
func (pdfRenderer) ContentType() string   { return "application/pdf" }
func (pdfRenderer) Extension() string     { return "pdf" }

func (pdfRenderer) Render(doc Document, opts Options) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("politicas-backend", true)
	if !doc.GeneratedAt.IsZero() {
		pdf.SetCreationDate(doc.GeneratedAt)
		pdf.SetModificationDate(doc.GeneratedAt)
	}
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	// Core fonts are cp1252; the translator maps accents and ñ.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		if !opts.Watermark {
			return
		}
		pdf.SetFont("Helvetica", "B", 48)
		pdf.SetTextColor(200, 30, 30)
		pdf.SetAlpha(0.12, "Normal")
		pdf.TransformBegin()
		pdf.TransformRotate(45, 105, 148)
		w := pdf.GetStringWidth(tr(WatermarkText))
		pdf.Text(105-w/2, 148, tr(WatermarkText))
		pdf.TransformEnd()
		pdf.SetAlpha(1, "Normal")
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Página %d", pdf.PageNo())), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(doc.Title), "", "L", false)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(90, 90, 90)
	meta := "Actualizada el " + spanishDate(doc.GeneratedAt)
	if doc.Company != "" {
		meta = doc.Company + " · " + meta
	}
	pdf.MultiCell(0, 6, tr(meta), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	for _, sec := range doc.Sections {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.MultiCell(0, 8, tr(fmt.Sprintf("%d. %s", sec.Number, sec.Title)), "B", "L", false)
		pdf.Ln(2)
		for _, e := range sec.Entries {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.MultiCell(0, 6, tr(e.Label), "", "L", false)
			pdf.SetFont("Helvetica", "", 10)
			if len(e.Items) > 0 {
				for _, it := range e.Items {
					pdf.MultiCell(0, 5.5, tr("• "+it), "", "L", false)
				}
			} else {
				pdf.MultiCell(0, 5.5, tr(e.Value), "", "L", false)
			}
			pdf.Ln(1.5)
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
