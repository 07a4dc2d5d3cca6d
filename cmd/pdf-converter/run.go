package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kodiwosan/pdf-converter/internal/api"
	"github.com/kodiwosan/pdf-converter/internal/capture"
	"github.com/kodiwosan/pdf-converter/internal/config"
)

var (
	runCapture  captureFlags
	runAssemble assembleFlags
)

// runSummary is printed after a run.
type runSummary struct {
	RunID   string          `json:"run_id" yaml:"run_id"`
	Window  string          `json:"window" yaml:"window"`
	Region  string          `json:"region" yaml:"region"`
	Frames  string          `json:"frames,omitempty" yaml:"frames,omitempty"`
	Pages   int             `json:"pages" yaml:"pages"`
	Outcome capture.Outcome `json:"outcome" yaml:"outcome"`
	PDF     *pdfSummary     `json:"pdf,omitempty" yaml:"pdf,omitempty"`
}

var runCmd = &cobra.Command{
	Use:   "run <window-title>",
	Short: "Capture every page of an open book and write a PDF",
	Long: `Capture every page of the book open in the window whose title contains
<window-title>, then assemble the frames into a PDF.

The window is brought to the front, the capture region is chosen (--crop),
and after a short start delay the page is captured and the next-page key is
pressed until the page stops changing. Press the abort key (default: esc)
to stop early; the pages captured so far are still assembled.

Examples:
  pdf-converter run "Kindle"
  pdf-converter run "Kindle" --crop auto --ocr --lang jpn
  pdf-converter run "Kindle" --region 100,80,1200,1600 --output-path book.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		title := args[0]

		s, err := newSession(ctx, runCapture.apply, runAssemble.apply)
		if err != nil {
			return err
		}

		w, r, err := selectRegion(ctx, s, title, &runCapture)
		if err != nil {
			return err
		}

		capRes, capErr := captureFrames(ctx, s, r)
		if capRes == nil {
			return capErr
		}
		if capErr != nil {
			s.logger.Error("capture stopped early", "pages", capRes.Pages, "error", capErr)
		}

		summary := runSummary{
			RunID:   s.id,
			Window:  w.Title(),
			Region:  r.String(),
			Frames:  s.framesDir(),
			Pages:   capRes.Pages,
			Outcome: capRes.Outcome,
		}

		if capRes.Pages == 0 {
			if err := api.Output(summary); err != nil {
				return err
			}
			return errors.Join(capErr, errors.New("no pages captured"))
		}
		if ctx.Err() != nil {
			s.logger.Warn("interrupted, frames kept for later assembly",
				"frames", s.framesDir(), "hint", "pdf-converter assemble "+s.framesDir())
			if err := api.Output(summary); err != nil {
				return err
			}
			return ctx.Err()
		}

		pdfRes, err := assembleFrames(ctx, s.cfg, capRes.Frames, s.logger)
		if err != nil {
			return errors.Join(capErr, fmt.Errorf("failed to assemble PDF: %w", err))
		}
		summary.PDF = summarizePDF(pdfRes)

		if s.cleanup(capErr) {
			summary.Frames = ""
		}

		if err := api.Output(summary); err != nil {
			return err
		}
		return capErr
	},
}

func init() {
	addCaptureFlags(runCmd, &runCapture)
	addAssembleFlags(runCmd, &runAssemble)
}

func addCaptureFlags(cmd *cobra.Command, f *captureFlags) {
	cmd.Flags().StringVar(&f.crop, "crop", string(cropNone), "capture region: none (whole window), auto or manual")
	cmd.Flags().StringVar(&f.region, "region", "", "explicit capture region as left,top,width,height (overrides --crop)")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "stop after this many pages (default from config)")
	cmd.Flags().StringVar(&f.key, "key", "", "key that turns to the next page (default from config)")
}

func addAssembleFlags(cmd *cobra.Command, f *assembleFlags) {
	cmd.Flags().BoolVar(&f.ocr, "ocr", false, "add an OCR text layer")
	cmd.Flags().BoolVar(&f.noOCR, "no-ocr", false, "write an image-only PDF even if OCR is enabled in config")
	cmd.Flags().StringVar(&f.lang, "lang", "", "tesseract language, e.g. jpn or eng (default from config)")
	cmd.Flags().StringVar(&f.outputPath, "output-path", "", "PDF to write (default from config)")
	cmd.Flags().StringVar(&f.onPageFailure, "on-page-failure", "",
		fmt.Sprintf("what to do with pages OCR cannot read: %s or %s", config.PageFailureImage, config.PageFailureSkip))
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent OCR processes (default from config)")
}
