package export

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	previewWidth  = 1200
	previewHeight = 630
)

var (
	fontsOnce sync.Once
	boldFont  *truetype.Font
	regFont   *truetype.Font
	fontsErr  error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		boldFont, fontsErr = truetype.Parse(gobold.TTF)
		if fontsErr != nil {
			return
		}
		regFont, fontsErr = truetype.Parse(goregular.TTF)
	})
	return fontsErr
}

func face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size, Hinting: font.HintingNone})
}

// PreviewCard is what the share card shows.
type PreviewCard struct {
	Title         string
	Company       string
	CompletionPct int
	Watermark     bool
}

// RenderPreviewPNG draws the 1200x630 social card for a shared policy.
func RenderPreviewPNG(card PreviewCard) ([]byte, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}

	dc := gg.NewContext(previewWidth, previewHeight)
	grad := gg.NewLinearGradient(0, 0, previewWidth, previewHeight)
	grad.AddColorStop(0, color.RGBA{R: 16, G: 42, B: 67, A: 255})
	grad.AddColorStop(1, color.RGBA{R: 36, G: 59, B: 83, A: 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, previewWidth, previewHeight)
	dc.Fill()

	dc.SetColor(color.RGBA{R: 240, G: 180, B: 41, A: 255})
	dc.DrawRectangle(80, 90, 120, 8)
	dc.Fill()

	dc.SetColor(color.White)
	dc.SetFontFace(face(boldFont, 60))
	title := card.Title
	if title == "" {
		title = "Política de Privacidad"
	}
	dc.DrawStringWrapped(title, 80, 140, 0, 0, previewWidth-160, 1.3, gg.AlignLeft)

	dc.SetFontFace(face(regFont, 32))
	dc.SetColor(color.RGBA{R: 188, G: 204, B: 220, A: 255})
	if card.Company != "" {
		dc.DrawString(card.Company, 80, 470)
	}

	// Progress bar.
	barW := float64(previewWidth - 160)
	dc.SetColor(color.RGBA{R: 72, G: 101, B: 129, A: 255})
	dc.DrawRoundedRectangle(80, 520, barW, 18, 9)
	dc.Fill()
	pct := min(max(card.CompletionPct, 0), 100)
	if pct > 0 {
		dc.SetColor(color.RGBA{R: 62, G: 189, B: 147, A: 255})
		dc.DrawRoundedRectangle(80, 520, barW*float64(pct)/100, 18, 9)
		dc.Fill()
	}
	dc.SetColor(color.White)
	dc.SetFontFace(face(regFont, 24))
	dc.DrawStringAnchored(fmt.Sprintf("%d%% completa", pct), previewWidth-80, 580, 1, 0)

	if card.Watermark {
		dc.Push()
		dc.RotateAbout(gg.Radians(-20), previewWidth/2, previewHeight/2)
		dc.SetColor(color.RGBA{R: 255, G: 255, B: 255, A: 40})
		dc.SetFontFace(face(boldFont, 96))
		dc.DrawStringAnchored(WatermarkText, previewWidth/2, previewHeight/2, 0.5, 0.5)
		dc.Pop()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
