package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kodiwosan/pdf-converter/internal/assemble"
	"github.com/kodiwosan/pdf-converter/internal/capture"
	"github.com/kodiwosan/pdf-converter/internal/config"
	"github.com/kodiwosan/pdf-converter/internal/desktop"
	"github.com/kodiwosan/pdf-converter/internal/frames"
	"github.com/kodiwosan/pdf-converter/internal/hotkey"
	"github.com/kodiwosan/pdf-converter/internal/ocr"
	"github.com/kodiwosan/pdf-converter/internal/pdf"
	"github.com/kodiwosan/pdf-converter/internal/region"
)

// captureFlags are shared by the run and capture commands.
type captureFlags struct {
	crop     string
	region   string
	maxPages int
	key      string
}

// assembleFlags are shared by the run and assemble commands.
type assembleFlags struct {
	ocr           bool
	noOCR         bool
	lang          string
	outputPath    string
	onPageFailure string
	workers       int
}

// apply copies explicitly set flags over the loaded configuration.
func (f *captureFlags) apply(cfg *config.Config) error {
	if f.maxPages > 0 {
		cfg.Capture.MaxPages = f.maxPages
	}
	if f.key != "" {
		cfg.Capture.NextPageKey = f.key
	}
	return cfg.Validate()
}

func (f *assembleFlags) apply(cfg *config.Config) error {
	switch {
	case f.ocr && f.noOCR:
		return errors.New("--ocr and --no-ocr are mutually exclusive")
	case f.ocr:
		cfg.OCR.Enabled = true
	case f.noOCR:
		cfg.OCR.Enabled = false
	}
	if f.lang != "" {
		cfg.OCR.Language = f.lang
	}
	if f.outputPath != "" {
		cfg.Output.Path = f.outputPath
	}
	if f.workers > 0 {
		cfg.OCR.Workers = f.workers
	}
	if f.onPageFailure != "" {
		cfg.OCR.OnPageFailure = f.onPageFailure
	}
	return cfg.Validate()
}

// selectRegion focuses the window titled title and decides what part of it
// to capture. The window is focused again after auto or manual calibration.
func selectRegion(ctx context.Context, s *session, title string, f *captureFlags) (capture.Window, region.Region, error) {
	loc := desktop.NewLocator(s.logger)
	clock := capture.RealClock{}
	delay := s.cfg.Capture.ActivateDelay()

	w, err := capture.FocusWindow(ctx, loc, clock, title, delay, s.logger)
	if err != nil {
		return nil, region.Region{}, err
	}

	var r region.Region
	if f.region != "" {
		if r, err = region.Parse(f.region); err != nil {
			return nil, region.Region{}, err
		}
		if !r.Valid() {
			return nil, region.Region{}, fmt.Errorf("invalid --region %q: %w", f.region, region.ErrEmptyRegion)
		}
		s.logger.Info("using region from flag", "region", r.String())
		return w, r, nil
	}

	mode, err := parseCropMode(f.crop)
	if err != nil {
		return nil, region.Region{}, err
	}
	cal := &calibrator{
		capturer: desktop.Capturer{},
		pointer:  desktop.Pointer{},
		detect:   detectOptions(s.cfg.Detect),
		debug:    s.cfg.Detect.Debug,
		debugDir: s.debugDir(),
		in:       os.Stdin,
		out:      os.Stderr,
		logger:   s.logger,
	}
	if r, err = cal.pick(ctx, w.Bounds(), mode); err != nil {
		return nil, region.Region{}, err
	}

	if mode.movesFocus() {
		if w, err = capture.FocusWindow(ctx, loc, clock, title, delay, s.logger); err != nil {
			return nil, region.Region{}, err
		}
	}
	return w, r, nil
}

// captureFrames runs the page-turning loop into the session's frame
// directory. The abort hotkey only stops the loop; the parent context is
// left alive so the frames can still be assembled.
func captureFrames(ctx context.Context, s *session, r region.Region) (*capture.Result, error) {
	store, err := frames.New(s.framesDir())
	if err != nil {
		return nil, err
	}

	cc := s.cfg.Capture
	loop := capture.NewLoop(desktop.Capturer{}, desktop.Keyboard{}, store, capture.RealClock{}, capture.Config{
		NextPageKey: cc.NextPageKey,
		SettleDelay: cc.SettleDelay(),
		MaxPages:    cc.MaxPages,
		Retries:     cc.Retries,
		RetryDelay:  cc.RetryDelay(),
		CallTimeout: cc.CallTimeout(),
	}, s.logger)

	runCtx, stop := hotkey.WithAbort(ctx, cc.AbortKey, s.logger)
	defer stop()

	s.logger.Info("starting capture", "region", r.String(), "delay", cc.StartDelay(), "frames", store.Dir())
	if err := (capture.RealClock{}).Sleep(runCtx, cc.StartDelay()); err != nil {
		s.logger.Info("capture aborted before the first page")
	}
	return loop.Run(runCtx, r)
}

// newEngine returns the OCR engine, or nil when tesseract is not installed
// so assembly degrades to an image-only PDF.
func newEngine(cfg config.OCRCfg, logger *slog.Logger) (assemble.Engine, error) {
	t, err := ocr.New(ocr.Config{
		Binary:      cfg.Binary,
		TessdataDir: cfg.TessdataDir,
		Timeout:     cfg.Timeout(),
		Logger:      logger,
	})
	if errors.Is(err, ocr.ErrEngineNotFound) {
		logger.Warn("tesseract not found, OCR disabled", "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// assembleFrames writes the frames to the configured output PDF.
func assembleFrames(ctx context.Context, cfg *config.Config, in []frames.Frame, logger *slog.Logger) (*assemble.Result, error) {
	var engine assemble.Engine
	if cfg.OCR.Enabled {
		e, err := newEngine(cfg.OCR, logger)
		if err != nil {
			return nil, err
		}
		engine = e
	}

	p := assemble.NewPipeline(engine, pdf.NewBackend(), logger)
	return p.Assemble(ctx, in, assemble.Options{
		OCR:           cfg.OCR.Enabled,
		Language:      cfg.OCR.Language,
		Output:        cfg.Output.Path,
		OnPageFailure: assemble.PageFailurePolicy(cfg.OCR.OnPageFailure),
		Workers:       cfg.OCR.Workers,
	})
}

// pdfSummary is the part of an assembly result shown to the user.
type pdfSummary struct {
	Path         string `json:"path" yaml:"path"`
	Pages        int    `json:"pages" yaml:"pages"`
	Searchable   bool   `json:"searchable" yaml:"searchable"`
	Fallback     string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	TotalChars   int    `json:"total_chars" yaml:"total_chars"`
	Verified     bool   `json:"verified" yaml:"verified"`
	SkippedPages []int  `json:"skipped_pages,omitempty" yaml:"skipped_pages,omitempty"`
}

func summarizePDF(res *assemble.Result) *pdfSummary {
	if res == nil {
		return nil
	}
	s := &pdfSummary{
		Path:       res.Path,
		Pages:      res.Pages,
		Searchable: res.Searchable,
		Fallback:   res.Fallback,
		TotalChars: res.TotalChars,
		Verified:   res.Verified,
	}
	for _, pr := range res.PageResults {
		if pr.Status == assemble.StatusSkipped {
			s.SkippedPages = append(s.SkippedPages, pr.Frame)
		}
	}
	return s
}
