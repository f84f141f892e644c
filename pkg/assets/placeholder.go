package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	PlaceholderWidth  = 640
	PlaceholderHeight = 360
)

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// Placeholder returns the fixed "broken image" graphic substituted for
// images that could not be fetched. Every call returns a fresh copy of the
// same bytes.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		placeholderPNG = drawPlaceholder()
	})
	return bytes.Clone(placeholderPNG)
}

func drawPlaceholder() []byte {
	const w, h = PlaceholderWidth, PlaceholderHeight
	dc := gg.NewContext(w, h)

	dc.SetColor(color.NRGBA{R: 0xF2, G: 0xF2, B: 0xF2, A: 0xFF})
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetColor(color.NRGBA{R: 0xB0, G: 0xB0, B: 0xB0, A: 0xFF})
	dc.SetLineWidth(6)
	dc.DrawRectangle(3, 3, w-6, h-6)
	dc.Stroke()

	// Frame glyph: a picture outline crossed out.
	cx, cy := float64(w)/2, float64(h)/2-24
	dc.SetLineWidth(4)
	dc.DrawRoundedRectangle(cx-60, cy-45, 120, 90, 8)
	dc.Stroke()
	dc.DrawLine(cx-60, cy-45, cx+60, cy+45)
	dc.DrawLine(cx-60, cy+45, cx+60, cy-45)
	dc.Stroke()

	dc.SetColor(color.NRGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xFF})
	dc.SetFontFace(basicfont.Face7x13)
	dc.DrawStringAnchored("Image unavailable", cx, cy+80, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return solidPNG(w, h)
	}
	return buf.Bytes()
}

func solidPNG(w, h int) []byte {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xF2
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
