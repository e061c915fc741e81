package cli

import (
	"github.com/spf13/cobra"

	"github.com/xavierca1/crm-dwh-sync/internal/config"
)

type ReportOptions struct {
	*RootOptions
}

func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:       "report <conversion|deals>",
		Short:     "Print a warehouse report",
		Long:      "Print the lead conversion or deal performance report. With DB_DRIVER=memory a sync runs first, since the store starts empty.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"conversion", "deals"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args[0], cmd)
		},
	}

	return cmd
}

func runReport(opts *ReportOptions, kind string, cmd *cobra.Command) error {
	if kind != "conversion" && kind != "deals" {
		return WrapExitError(ExitCommandError, "unknown report "+kind+": want conversion or deals", nil)
	}

	ctx := cmd.Context()
	app, err := NewApp(ctx, opts.Config, opts.Logger, AppOptions{})
	if err != nil {
		return WrapExitError(ExitCommandError, "initialize", err)
	}
	defer app.Close()

	if opts.Config.Database.Driver == config.DriverMemory {
		app.Sync.Run(ctx)
	}

	out := cmd.OutOrStdout()
	if kind == "conversion" {
		r, err := app.Reports.ConversionRate(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "conversion report", err)
		}
		return printConversion(out, opts.Output, r)
	}

	r, err := app.Reports.DealPerformance(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "deal performance report", err)
	}
	return printDealPerformance(out, opts.Output, r)
}
