package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xavierca1/crm-dwh-sync/internal/config"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/database"
)

type MigrateOptions struct {
	*RootOptions
	StatusOnly bool
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending warehouse schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.StatusOnly, "status", false, "print the current schema version and exit")

	return cmd
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command) error {
	dbCfg := opts.Config.Database
	if dbCfg.Driver == config.DriverMemory {
		return WrapExitError(ExitCommandError, "migrate needs a Postgres driver, DB_DRIVER is memory", nil)
	}

	ctx := cmd.Context()
	db, err := database.NewDBConnection(ctx, dbCfg.Driver, dbCfg.DSN())
	if err != nil {
		return WrapExitError(ExitCommandError, "connect database", err)
	}
	defer db.Close()

	database.SetMigrationLogger(opts.Logger)
	if !opts.StatusOnly {
		if err := database.RunMigrations(ctx, db); err != nil {
			return WrapExitError(ExitCommandError, "migrate", err)
		}
	}

	version, err := database.MigrationVersion(ctx, db)
	if err != nil {
		return WrapExitError(ExitCommandError, "read schema version", err)
	}
	if opts.Output == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]int64{"version": version})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}
