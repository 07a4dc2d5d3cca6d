package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kodiwosan/pdf-converter/internal/api"
	"github.com/kodiwosan/pdf-converter/internal/frames"
	"github.com/kodiwosan/pdf-converter/internal/svcctx"
)

var assembleOnly assembleFlags

var assembleCmd = &cobra.Command{
	Use:   "assemble <frames-dir>",
	Short: "Build a PDF from an existing frame directory",
	Long: `Build a PDF from the page_NNNN.png frames of an earlier run, for example
after a run was interrupted or to redo OCR with a different language.

Examples:
  pdf-converter assemble ~/.pdf-converter/runs/<run-id>/frames
  pdf-converter assemble ./frames --ocr --lang eng --output-path book.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := svcctx.LoggerFrom(ctx)

		cfg := *svcctx.ConfigFrom(ctx)
		if err := assembleOnly.apply(&cfg); err != nil {
			return err
		}

		store, err := frames.Open(args[0])
		if err != nil {
			return err
		}
		list, err := store.List()
		if err != nil {
			return fmt.Errorf("failed to read frames: %w", err)
		}
		logger.Info("assembling frames", "dir", store.Dir(), "frames", len(list))

		res, err := assembleFrames(ctx, &cfg, list, logger)
		if err != nil {
			return fmt.Errorf("failed to assemble PDF: %w", err)
		}
		return api.Output(summarizePDF(res))
	},
}

func init() {
	addAssembleFlags(assembleCmd, &assembleOnly)
}
