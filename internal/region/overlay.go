package region

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	colorEdgeBand   = color.NRGBA{R: 0, G: 0, B: 255, A: 255}
	colorLowDensity = color.NRGBA{R: 255, G: 255, B: 0, A: 255}
	colorAccepted   = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	colorUnion      = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
)

// Overlay draws the detection on top of the screenshot it was computed from.
// Too-small candidates are left out to keep the picture readable.
func (d *Detection) Overlay(screenshot image.Image) *image.NRGBA {
	dst := imaging.Clone(screenshot)

	for _, c := range d.Candidates {
		var col color.NRGBA
		switch c.Verdict {
		case VerdictEdgeBand:
			col = colorEdgeBand
		case VerdictLowDensity:
			col = colorLowDensity
		case VerdictAccepted:
			col = colorAccepted
		default:
			continue
		}
		strokeRect(dst, c.Bounds, col, 2)
		if c.Verdict != VerdictEdgeBand {
			label(dst, c.Bounds.Min, fmt.Sprintf("%.2f", c.WhiteDensity), col)
		}
	}
	if d.Found {
		strokeRect(dst, d.Union, colorUnion, 3)
	}
	return dst
}

// SaveOverlay writes the overlay as an image file; the format follows the extension.
func (d *Detection) SaveOverlay(screenshot image.Image, path string) error {
	if err := imaging.Save(d.Overlay(screenshot), path); err != nil {
		return fmt.Errorf("failed to save overlay: %w", err)
	}
	return nil
}

func strokeRect(dst draw.Image, r image.Rectangle, col color.Color, width int) {
	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

func label(dst draw.Image, at image.Point, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X+4, at.Y+16),
	}
	d.DrawString(text)
}
