package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/LovationAdmin/expense-api/config"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the local backend's database schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), opts, func(m *migrate.Migrate) error {
				if err := m.Up(); err != nil {
					if errors.Is(err, migrate.ErrNoChange) {
						pterm.Info.Println("Schema is up to date")
						return nil
					}
					return fmt.Errorf("failed to run migration(up): %w", err)
				}
				pterm.Success.Println("Migrations applied")
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), opts, func(m *migrate.Migrate) error {
				if _, _, err := m.Version(); errors.Is(err, migrate.ErrNilVersion) {
					pterm.Info.Println("Nothing to roll back")
					return nil
				}
				if err := m.Steps(-1); err != nil {
					if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, migrate.ErrNilVersion) {
						pterm.Info.Println("Nothing to roll back")
						return nil
					}
					return fmt.Errorf("failed to run migration(down): %w", err)
				}
				pterm.Success.Println("Rolled back one migration")
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), opts, func(m *migrate.Migrate) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					pterm.Info.Println("No migrations applied")
					return nil
				}
				if err != nil {
					return err
				}
				pterm.Info.Printf("Schema version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	})

	return migrateCmd
}

func withMigrator(ctx context.Context, opts *rootOptions, fn func(*migrate.Migrate) error) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if cfg.Auth.Provider != config.BackendLocal {
		return fmt.Errorf("migrations apply to the local backend only (AUTH_PROVIDER=%s)", cfg.Auth.Provider)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	db, dialect, err := config.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}

	defer db.Close()

	m, release, err := config.NewMigrator(ctx, db, dialect)
	if err != nil {
		return err
	}
	defer release()

	return fn(m)
}
