// Package region locates the page content of an e-reader window.
//
// A Region is an absolute screen rectangle. The Detector narrows a raw window
// screenshot to the part that looks like a page: mostly light pixels, away
// from the toolbar bands at the top and bottom of the window.
package region

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// ErrEmptyRegion is returned when a region has no area.
var ErrEmptyRegion = errors.New("region has no area")

// Region is a rectangle in absolute screen coordinates.
type Region struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Valid reports whether the region has a positive area.
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Rect returns the region as an image rectangle (max exclusive).
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

// Origin returns the top-left corner.
func (r Region) Origin() image.Point {
	return image.Pt(r.Left, r.Top)
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.Left, r.Top, r.Width, r.Height)
}

// FromRect converts an image rectangle to a Region.
func FromRect(rect image.Rectangle) Region {
	rect = rect.Canon()
	return Region{
		Left:   rect.Min.X,
		Top:    rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}
}

// FromCorners builds a region from two opposite corners given in any order,
// as picked during manual calibration.
func FromCorners(a, b image.Point) (Region, error) {
	r := FromRect(image.Rectangle{Min: a, Max: b})
	if !r.Valid() {
		return Region{}, fmt.Errorf("%w: corners %v and %v", ErrEmptyRegion, a, b)
	}
	return r, nil
}

// Parse reads a region written as "left,top,width,height".
func Parse(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("invalid region %q: want left,top,width,height", s)
	}
	var vals [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		vals[i] = n
	}
	r := Region{Left: vals[0], Top: vals[1], Width: vals[2], Height: vals[3]}
	if !r.Valid() {
		return Region{}, fmt.Errorf("%w: %q", ErrEmptyRegion, s)
	}
	return r, nil
}
