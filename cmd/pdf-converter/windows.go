package main

import (
	"github.com/spf13/cobra"

	"github.com/kodiwosan/pdf-converter/internal/api"
	"github.com/kodiwosan/pdf-converter/internal/desktop"
	"github.com/kodiwosan/pdf-converter/internal/svcctx"
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List titled windows, to find the title to pass to run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		list, err := desktop.NewLocator(svcctx.LoggerFrom(ctx)).List(ctx)
		if err != nil {
			return err
		}
		return api.Output(list)
	},
}
