package main

import (
	"github.com/spf13/cobra"

	"github.com/kodiwosan/pdf-converter/internal/api"
)

var captureOnly captureFlags

var captureCmd = &cobra.Command{
	Use:   "capture <window-title>",
	Short: "Capture pages into a frame directory without writing a PDF",
	Long: `Capture every page of the book like run does, but stop after the frames
are written. Use "pdf-converter assemble <frames-dir>" to build the PDF later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := newSession(ctx, captureOnly.apply)
		if err != nil {
			return err
		}
		w, r, err := selectRegion(ctx, s, args[0], &captureOnly)
		if err != nil {
			return err
		}

		res, capErr := captureFrames(ctx, s, r)
		if res == nil {
			return capErr
		}
		if err := api.Output(runSummary{
			RunID:   s.id,
			Window:  w.Title(),
			Region:  r.String(),
			Frames:  s.framesDir(),
			Pages:   res.Pages,
			Outcome: res.Outcome,
		}); err != nil {
			return err
		}
		return capErr
	},
}

func init() {
	addCaptureFlags(captureCmd, &captureOnly)
}
