package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/config"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/logging"
)

// RootOptions holds global flags and the state PersistentPreRunE prepares
// for subcommands.
type RootOptions struct {
	ConfigFile string
	LogLevel   string
	Output     string // "text" | "json"

	Config config.Config
	Logger *zap.Logger
}

var ValidOutputs = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "crmsync",
		Short: "Sync CRM leads and deals into the warehouse",
		Long: `crmsync extracts leads and deals from the CRM, deduplicates and
normalizes them, and upserts them into the warehouse. It also serves
conversion and deal performance reports over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "text", "output format (text|json)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))

	return cmd
}

func (o *RootOptions) prepare() error {
	if !slices.Contains(ValidOutputs, o.Output) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid output %q: must be one of %v", o.Output, ValidOutputs), nil)
	}
	if o.ConfigFile != "" {
		if err := os.Setenv("CONFIG_FILE", o.ConfigFile); err != nil {
			return WrapExitError(ExitCommandError, "set CONFIG_FILE", err)
		}
	}
	if o.LogLevel != "" {
		if err := os.Setenv("LOG_LEVEL", o.LogLevel); err != nil {
			return WrapExitError(ExitCommandError, "set LOG_LEVEL", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return WrapExitError(ExitCommandError, "build logger", err)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("config: " + w)
	}

	o.Config = cfg
	o.Logger = logger
	return nil
}
