// Package certificates renders certificate artifacts for unlocked
// certificate badges and stores them where clients can fetch them.
package certificates

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	Width  = 1600
	Height = 1131
)

// CertificateData is everything printed on a certificate.
type CertificateData struct {
	ActorID     string
	DisplayName string
	BadgeID     string
	BadgeName   string
	Description string
	IssuedAt    time.Time
}

type Renderer struct {
	title  font.Face
	name   font.Face
	body   font.Face
	accent color.Color
}

func NewRenderer() (*Renderer, error) {
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	return &Renderer{
		title:  newFace(bold, 72),
		name:   newFace(bold, 56),
		body:   newFace(regular, 32),
		accent: color.NRGBA{R: 0x1f, G: 0x4e, B: 0x79, A: 0xff},
	}, nil
}

func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Render draws the certificate and returns it PNG encoded.
func (r *Renderer) Render(d CertificateData) ([]byte, error) {
	if strings.TrimSpace(d.BadgeName) == "" {
		return nil, fmt.Errorf("certificate needs a badge name")
	}
	if d.IssuedAt.IsZero() {
		d.IssuedAt = time.Now().UTC()
	}
	holder := strings.TrimSpace(d.DisplayName)
	if holder == "" {
		holder = d.ActorID
	}

	dc := gg.NewContext(Width, Height)
	dc.SetColor(color.White)
	dc.Clear()

	// double border
	dc.SetColor(r.accent)
	dc.SetLineWidth(12)
	dc.DrawRectangle(40, 40, Width-80, Height-80)
	dc.Stroke()
	dc.SetLineWidth(3)
	dc.DrawRectangle(70, 70, Width-140, Height-140)
	dc.Stroke()

	cx := float64(Width) / 2

	dc.SetFontFace(r.title)
	dc.DrawStringAnchored("Certificate of Achievement", cx, 260, 0.5, 0.5)

	dc.SetColor(color.Black)
	dc.SetFontFace(r.body)
	dc.DrawStringAnchored("This certifies that", cx, 400, 0.5, 0.5)

	dc.SetColor(r.accent)
	dc.SetFontFace(r.name)
	dc.DrawStringAnchored(holder, cx, 490, 0.5, 0.5)

	dc.SetColor(color.Black)
	dc.SetFontFace(r.body)
	dc.DrawStringAnchored("has earned", cx, 580, 0.5, 0.5)

	dc.SetFontFace(r.name)
	dc.DrawStringAnchored(d.BadgeName, cx, 670, 0.5, 0.5)

	if desc := strings.TrimSpace(d.Description); desc != "" {
		dc.SetFontFace(r.body)
		dc.DrawStringWrapped(desc, cx, 760, 0.5, 0, float64(Width)-400, 1.4, gg.AlignCenter)
	}

	dc.SetFontFace(r.body)
	dc.DrawStringAnchored("Issued "+d.IssuedAt.UTC().Format("January 2, 2006"), cx, float64(Height)-170, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode certificate png: %w", err)
	}
	return buf.Bytes(), nil
}
