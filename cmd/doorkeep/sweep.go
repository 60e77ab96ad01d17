// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/doorkeep/doorkeep/internal/auth"
	authpg "github.com/doorkeep/doorkeep/internal/auth/postgres"
	"github.com/doorkeep/doorkeep/internal/config"
	"github.com/doorkeep/doorkeep/internal/logging"
	"github.com/doorkeep/doorkeep/internal/store"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions",
		Long: `Delete all expired session rows and report the count. Intended to
run from cron or a Kubernetes CronJob; the server itself never sweeps.`,
		RunE: runSweep,
	}

	addConfigFlags(cmd)

	return cmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("doorkeep", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logger := slog.Default()

	ctx := cmd.Context()

	pool, err := store.Connect(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := auth.NewServiceWithLogger(
		authpg.NewUserRepository(pool),
		authpg.NewSessionRepository(pool),
		auth.NewArgon2idHasher(),
		logger,
	)
	if err != nil {
		return err
	}

	n, err := svc.SweepExpired(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("Deleted %d expired session(s)\n", n)
	return nil
}
