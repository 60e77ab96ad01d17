// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/doorkeep/doorkeep/internal/config"
	"github.com/doorkeep/doorkeep/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var (
		down  bool
		steps int
		force int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply pending database migrations. With --down all migrations are
rolled back; --steps applies (or rolls back, if negative) a fixed number;
--force overwrites the recorded version after manual repair.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runMigrate(cmd, cfg.Database.URL, down, steps, force)
		},
	}

	addConfigFlags(cmd)
	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations")
	cmd.Flags().IntVar(&steps, "steps", 0, "apply exactly n migrations (negative rolls back)")
	cmd.Flags().IntVar(&force, "force", -1, "force the schema version without running migrations")

	return cmd
}

func runMigrate(cmd *cobra.Command, databaseURL string, down bool, steps, force int) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	switch {
	case force >= 0:
		if err := m.Force(force); err != nil {
			return err
		}
		cmd.Printf("Schema version forced to %d\n", force)
	case down:
		if err := m.Down(); err != nil {
			return err
		}
		cmd.Println("All migrations rolled back")
	case steps != 0:
		if err := m.Steps(steps); err != nil {
			return err
		}
		cmd.Printf("Applied %d migration step(s)\n", steps)
	default:
		if err := m.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
	}

	version, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_STATUS_FAILED").Wrap(err)
	}
	cmd.Printf("Schema version: %d (dirty: %v)\n", version, dirty)
	return nil
}

// migrateUp applies all pending migrations, used by serve --migrate.
func migrateUp(databaseURL string) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	return m.Up()
}
