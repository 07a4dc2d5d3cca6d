package main

import (
	"fmt"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/kodiwosan/pdf-converter/internal/api"
	"github.com/kodiwosan/pdf-converter/internal/capture"
	"github.com/kodiwosan/pdf-converter/internal/desktop"
	"github.com/kodiwosan/pdf-converter/internal/region"
)

// detectSummary reports what the detector saw in one window screenshot.
type detectSummary struct {
	Window     string             `json:"window" yaml:"window"`
	Bounds     string             `json:"bounds" yaml:"bounds"`
	Found      bool               `json:"found" yaml:"found"`
	Region     string             `json:"region" yaml:"region"`
	Threshold  uint8              `json:"threshold" yaml:"threshold"`
	Candidates []region.Candidate `json:"candidates" yaml:"candidates"`
	Screenshot string             `json:"screenshot" yaml:"screenshot"`
	Overlay    string             `json:"overlay" yaml:"overlay"`
}

var detectCmd = &cobra.Command{
	Use:   "detect <window-title>",
	Short: "Show which part of a window auto crop would capture",
	Long: `Screenshot the window and run content detection without capturing any
pages. The screenshot and an overlay marking every candidate region are
saved to the run's debug directory so the thresholds can be tuned.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		w, err := capture.FocusWindow(ctx, desktop.NewLocator(s.logger), capture.RealClock{},
			args[0], s.cfg.Capture.ActivateDelay(), s.logger)
		if err != nil {
			return err
		}
		bounds := w.Bounds()

		shot, err := desktop.Capturer{}.Capture(ctx, bounds)
		if err != nil {
			return fmt.Errorf("failed to capture window: %w", err)
		}
		det := region.NewDetector(detectOptions(s.cfg.Detect), s.logger).Analyze(shot)

		summary := detectSummary{
			Window:     w.Title(),
			Bounds:     bounds.String(),
			Found:      det.Found,
			Region:     bounds.String(),
			Threshold:  det.Threshold,
			Candidates: det.Candidates,
			Screenshot: filepath.Join(s.debugDir(), windowShotName),
			Overlay:    filepath.Join(s.debugDir(), overlayName),
		}
		if r, ok := det.Region(bounds.Origin()); ok {
			summary.Region = r.String()
		}

		if err := imaging.Save(shot, summary.Screenshot); err != nil {
			return fmt.Errorf("failed to save screenshot: %w", err)
		}
		if err := det.SaveOverlay(shot, summary.Overlay); err != nil {
			return err
		}
		return api.Output(summary)
	},
}
