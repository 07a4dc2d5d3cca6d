package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kodiwosan/pdf-converter/internal/api"
	"github.com/kodiwosan/pdf-converter/internal/config"
	"github.com/kodiwosan/pdf-converter/internal/home"
	"github.com/kodiwosan/pdf-converter/internal/svcctx"
	"github.com/kodiwosan/pdf-converter/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "pdf-converter",
	Short: "Capture an e-reader window page by page into a searchable PDF",
	Long: `pdf-converter turns a book open in a desktop e-reader into a PDF.

It focuses the reader window, captures the page, presses the next-page key
and repeats until the page stops changing. The captured frames are then
assembled into a PDF, optionally with an OCR text layer from Tesseract.

Typical use:
  pdf-converter windows                      # find the reader window title
  pdf-converter run "Kindle" --crop auto     # capture and assemble
  pdf-converter assemble <frames-dir> --ocr  # rebuild a PDF from frames`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pdf-converter/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "working directory for runs (default: ~/.pdf-converter)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.PersistentPreRunE = setupServices

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(windowsCmd)
	rootCmd.AddCommand(configCmd)
}

// setupServices loads configuration and attaches the shared services to the
// command context before any subcommand runs.
func setupServices(cmd *cobra.Command, args []string) error {
	format, err := api.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	api.SetOutputFormat(format)

	h, err := home.New(homeDir)
	if err != nil {
		return err
	}

	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	mgr, err := config.NewManager(path, ".env", h.EnvPath())
	if err != nil {
		return err
	}

	logger := newLogger(mgr.Get().LogLevel, verbose)
	slog.SetDefault(logger)
	if src := mgr.Source(); src != "" {
		logger.Debug("loaded config", "path", src)
	}

	cmd.SetContext(svcctx.WithServices(cmd.Context(), &svcctx.Services{
		Config: mgr,
		Home:   h,
		Logger: logger,
	}))
	return nil
}

// newLogger writes human-readable logs to stderr so stdout stays free for
// the structured summary.
func newLogger(level string, debug bool) *slog.Logger {
	lvl := parseLevel(level)
	if debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
