package region

import (
	"image"
	"log/slog"
)

// Options tunes content detection. Ratios are relative to the screenshot.
type Options struct {
	MinAreaRatio    float64 // Candidates smaller than this share of the screenshot are noise
	EdgeBandRatio   float64 // Candidates centered in the top/bottom band are toolbars
	MinWhiteDensity float64 // Candidates with fewer white pixels are not pages
	Padding         int     // Pixels added around the union of accepted candidates
	BlurSigma       float64 // Gaussian blur applied before thresholding
}

// DefaultOptions returns the thresholds that work for common e-reader windows.
func DefaultOptions() Options {
	return Options{
		MinAreaRatio:    0.05,
		EdgeBandRatio:   0.10,
		MinWhiteDensity: 0.70,
		Padding:         5,
		BlurSigma:       1.1,
	}
}

// Verdict records why a candidate was kept or dropped.
type Verdict string

const (
	VerdictAccepted   Verdict = "accepted"
	VerdictTooSmall   Verdict = "too_small"
	VerdictEdgeBand   Verdict = "edge_band"
	VerdictLowDensity Verdict = "low_density"
)

// Candidate is one connected region found in the thresholded screenshot.
// Bounds are relative to the screenshot.
type Candidate struct {
	Bounds       image.Rectangle `json:"bounds" yaml:"bounds"`
	WhiteDensity float64         `json:"white_density" yaml:"white_density"`
	Verdict      Verdict         `json:"verdict" yaml:"verdict"`
}

// Detection is the full outcome of one analysis, kept for diagnostics.
type Detection struct {
	Size       image.Point     // Screenshot size
	Threshold  uint8           // Otsu level used for binarization
	Candidates []Candidate     // Every component, including the rejected ones
	Union      image.Rectangle // Padded union of accepted candidates, screenshot-relative
	Found      bool
}

// Accepted returns the candidates that passed every filter.
func (d *Detection) Accepted() []Candidate {
	var out []Candidate
	for _, c := range d.Candidates {
		if c.Verdict == VerdictAccepted {
			out = append(out, c)
		}
	}
	return out
}

// Region translates Union to the screen, where origin is the position of
// the screenshot's top-left pixel. It reports false when nothing was found.
func (d *Detection) Region(origin image.Point) (Region, bool) {
	if !d.Found {
		return Region{}, false
	}
	return FromRect(d.Union.Add(origin)), true
}

// Detector finds the content region of a window screenshot.
type Detector struct {
	opts   Options
	logger *slog.Logger
}

// NewDetector creates a detector. A nil logger uses slog.Default().
func NewDetector(opts Options, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		opts:   opts,
		logger: logger.With("component", "region"),
	}
}

// Detect returns the content region of screenshot in absolute coordinates,
// where origin is the screen position of the screenshot's top-left pixel.
// The second result is false when no candidate survives; callers fall back
// to the full window.
func (d *Detector) Detect(screenshot image.Image, origin image.Point) (Region, bool) {
	return d.Analyze(screenshot).Region(origin)
}

// Analyze runs detection and reports every candidate with its verdict.
func (d *Detector) Analyze(screenshot image.Image) *Detection {
	bin := binarize(screenshot, d.opts.BlurSigma)
	w, h := bin.w, bin.h

	det := &Detection{
		Size:      image.Pt(w, h),
		Threshold: bin.threshold,
	}
	if w == 0 || h == 0 {
		return det
	}

	totalArea := float64(w * h)
	topLimit := float64(h) * d.opts.EdgeBandRatio
	bottomLimit := float64(h) * (1 - d.opts.EdgeBandRatio)

	var union image.Rectangle
	for _, box := range bin.components() {
		c := Candidate{Bounds: box}
		area := box.Dx() * box.Dy()

		centerY := float64(box.Min.Y) + float64(box.Dy())/2
		switch {
		case float64(area) < totalArea*d.opts.MinAreaRatio:
			c.Verdict = VerdictTooSmall
		case centerY < topLimit || centerY > bottomLimit:
			c.Verdict = VerdictEdgeBand
		default:
			c.WhiteDensity = float64(bin.countWhite(box)) / float64(area)
			if c.WhiteDensity < d.opts.MinWhiteDensity {
				c.Verdict = VerdictLowDensity
				d.logger.Debug("skipping candidate with low white density",
					"x", box.Min.X, "y", box.Min.Y, "density", c.WhiteDensity)
			} else {
				c.Verdict = VerdictAccepted
				union = union.Union(box)
			}
		}
		det.Candidates = append(det.Candidates, c)
	}

	if union.Empty() {
		d.logger.Info("no page-like region found, using full window",
			"candidates", len(det.Candidates), "threshold", bin.threshold)
		return det
	}

	pad := d.opts.Padding
	det.Union = image.Rect(
		union.Min.X-pad, union.Min.Y-pad,
		union.Max.X+pad, union.Max.Y+pad,
	).Intersect(image.Rect(0, 0, w, h))
	det.Found = !det.Union.Empty()

	d.logger.Info("detected content region",
		"x", det.Union.Min.X, "y", det.Union.Min.Y,
		"width", det.Union.Dx(), "height", det.Union.Dy(),
		"accepted", len(det.Accepted()))
	return det
}
