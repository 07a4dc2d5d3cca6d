package main

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/kodiwosan/pdf-converter/internal/capture"
	"github.com/kodiwosan/pdf-converter/internal/config"
	"github.com/kodiwosan/pdf-converter/internal/region"
)

// cropMode selects how the capture region is chosen inside the window.
type cropMode string

const (
	cropNone   cropMode = "none"
	cropAuto   cropMode = "auto"
	cropManual cropMode = "manual"
)

const (
	testCaptureName = "test_capture.png"
	windowShotName  = "window.png"
	overlayName     = "detect_overlay.png"
)

func parseCropMode(s string) (cropMode, error) {
	switch m := cropMode(strings.ToLower(strings.TrimSpace(s))); m {
	case cropNone, cropAuto, cropManual:
		return m, nil
	case "":
		return cropNone, nil
	default:
		return "", fmt.Errorf("unknown crop mode %q: want none, auto or manual", s)
	}
}

// movesFocus reports whether calibration can leave another window in
// front of the reader.
func (m cropMode) movesFocus() bool {
	return m != cropNone
}

// pointer reports the mouse position in screen coordinates.
type pointer interface {
	Position() image.Point
}

// calibrator picks the capture region for a window.
type calibrator struct {
	capturer capture.ScreenCapturer
	pointer  pointer
	detect   region.Options
	debug    bool   // Save the window screenshot and detection overlay
	debugDir string // Where test captures and overlays go
	in       io.Reader
	out      io.Writer
	logger   *slog.Logger
}

func detectOptions(c config.DetectCfg) region.Options {
	return region.Options{
		MinAreaRatio:    c.MinAreaRatio,
		EdgeBandRatio:   c.EdgeBandRatio,
		MinWhiteDensity: c.MinWhiteDensity,
		Padding:         c.Padding,
		BlurSigma:       c.BlurSigma,
	}
}

// pick returns the capture region inside bounds for mode.
func (c *calibrator) pick(ctx context.Context, bounds region.Region, mode cropMode) (region.Region, error) {
	switch mode {
	case cropAuto:
		return c.auto(ctx, bounds)
	case cropManual:
		return c.manual(ctx)
	default:
		c.logger.Info("using full window", "region", bounds.String())
		return bounds, nil
	}
}

// auto detects the page inside the window and falls back to the whole
// window when nothing page-like is found.
func (c *calibrator) auto(ctx context.Context, bounds region.Region) (region.Region, error) {
	c.logger.Info("detecting content region", "window", bounds.String())
	shot, err := c.capturer.Capture(ctx, bounds)
	if err != nil {
		return region.Region{}, fmt.Errorf("failed to capture window for detection: %w", err)
	}

	det := region.NewDetector(c.detect, c.logger).Analyze(shot)
	if c.debug && c.debugDir != "" {
		c.saveImage(shot, windowShotName)
		if err := det.SaveOverlay(shot, filepath.Join(c.debugDir, overlayName)); err != nil {
			c.logger.Warn("could not save detection overlay", "error", err)
		}
	}
	r, ok := det.Region(bounds.Origin())
	if !ok {
		return bounds, nil
	}
	c.logger.Info("content region detected", "region", r.String(), "candidates", len(det.Candidates))
	c.testCapture(ctx, r)
	return r, nil
}

// manual asks the user to point at two opposite corners of the page.
func (c *calibrator) manual(ctx context.Context) (region.Region, error) {
	reader := bufio.NewReader(c.in)

	var corners [2]image.Point
	prompts := [2]string{
		"Move the mouse to the TOP-LEFT corner of the page and press Enter",
		"Move the mouse to the BOTTOM-RIGHT corner of the page and press Enter",
	}
	for i, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			return region.Region{}, err
		}
		fmt.Fprintln(c.out, prompt)
		if _, err := reader.ReadString('\n'); err != nil && err != io.EOF {
			return region.Region{}, fmt.Errorf("failed to read confirmation: %w", err)
		}
		corners[i] = c.pointer.Position()
		c.logger.Info("corner recorded", "x", corners[i].X, "y", corners[i].Y)
	}

	r, err := region.FromCorners(corners[0], corners[1])
	if err != nil {
		return region.Region{}, fmt.Errorf("invalid manual selection: %w", err)
	}
	c.logger.Info("manual region selected", "region", r.String())
	c.testCapture(ctx, r)

	confirm := "Press Enter if the crop is correct, or Ctrl+C to abort"
	if c.debugDir != "" {
		confirm = fmt.Sprintf("Check %s and press Enter if the crop is correct, or Ctrl+C to abort",
			filepath.Join(c.debugDir, testCaptureName))
	}
	fmt.Fprintln(c.out, confirm)
	if _, err := reader.ReadString('\n'); err != nil && err != io.EOF {
		return region.Region{}, fmt.Errorf("failed to read confirmation: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return region.Region{}, err
	}
	return r, nil
}

// testCapture saves one capture of r for inspection. Failures only warn.
func (c *calibrator) testCapture(ctx context.Context, r region.Region) {
	img, err := c.capturer.Capture(ctx, r)
	if err != nil {
		c.logger.Warn("test capture failed", "region", r.String(), "error", err)
		return
	}
	c.saveImage(img, testCaptureName)
}

func (c *calibrator) saveImage(img image.Image, name string) {
	if c.debugDir == "" {
		return
	}
	path := filepath.Join(c.debugDir, name)
	if err := imaging.Save(img, path); err != nil {
		c.logger.Warn("could not save image", "path", path, "error", err)
		return
	}
	c.logger.Info("saved image", "path", path)
}
