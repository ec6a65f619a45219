package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kwai-club/kwai/internal/cli/ui"
	"github.com/kwai-club/kwai/internal/config"
	"github.com/kwai-club/kwai/internal/database"
	"github.com/kwai-club/kwai/internal/web/cache"
)

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long: `Apply and inspect the schema migrations embedded in kwai.

Applied migrations are recorded in the schema_migrations table.

Available subcommands:
  up       - Apply all pending migrations
  status   - Show migration status`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd, opts)
		},
	})

	return cmd
}

func openMigrator(cmd *cobra.Command, opts *globalOptions) (*database.Migrator, *config.Config, func(), error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		cmd.PrintErr(ui.ConfigError(err.Error(), opts.noColor))
		return nil, nil, nil, err
	}
	db, err := database.Open(cmd.Context(), cfg.Database)
	if err != nil {
		cmd.PrintErr(ui.ConfigError(err.Error(), opts.noColor))
		return nil, nil, nil, err
	}
	return database.NewMigrator(db, nil), cfg, func() { db.Close() }, nil
}

func runMigrateUp(cmd *cobra.Command, opts *globalOptions) error {
	migrator, cfg, closeDB, err := openMigrator(cmd, opts)
	if err != nil {
		return err
	}
	defer closeDB()

	out := cmd.OutOrStdout()
	applied, err := migrator.Up(cmd.Context())
	for _, version := range applied {
		ui.WriteSuccess(out, "Applied "+version, opts.noColor)
	}
	if err != nil {
		cmd.PrintErr(ui.MigrationError(err.Error(), applied, opts.noColor))
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "Database is up to date")
		return nil
	}

	// Cached documents may no longer match the schema. Only a shared redis
	// cache outlives this process.
	if cfg.Redis.Addr != "" {
		docs, err := cache.New(cfg.Redis)
		if err != nil {
			return err
		}
		defer docs.Close()
		n, err := cache.NewInvalidator(docs, cache.DefaultKeyGenerator(cfg.Server.APIPrefix)).InvalidateAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("migrations applied, but the document cache was not cleared: %w", err)
		}
		fmt.Fprintf(out, "Dropped %d cached documents\n", n)
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, opts *globalOptions) error {
	migrator, _, closeDB, err := openMigrator(cmd, opts)
	if err != nil {
		return err
	}
	defer closeDB()

	migrations, err := migrator.Status(cmd.Context())
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	if opts.noColor {
		green.DisableColor()
		yellow.DisableColor()
	}

	table := ui.NewTable(cmd.OutOrStdout(), []string{"VERSION", "STATUS", "APPLIED AT"}, &ui.TableOptions{NoColor: opts.noColor})
	for _, m := range migrations {
		if m.Applied() {
			table.AddRow(m.Version, green.Sprint("applied"), m.AppliedAt.Format("2006-01-02 15:04:05"))
		} else {
			table.AddRow(m.Version, yellow.Sprint("pending"), "")
		}
	}
	table.Render()
	return nil
}
