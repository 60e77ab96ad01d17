// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/doorkeep/doorkeep/internal/auth"
	authpg "github.com/doorkeep/doorkeep/internal/auth/postgres"
	"github.com/doorkeep/doorkeep/internal/config"
	"github.com/doorkeep/doorkeep/internal/logging"
	"github.com/doorkeep/doorkeep/internal/observability"
	"github.com/doorkeep/doorkeep/internal/server"
	"github.com/doorkeep/doorkeep/internal/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var migrateOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP server",
		Long: `Start the HTTP server exposing registration, login, and logout,
plus a separate metrics/health listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, migrateOnStart)
		},
	}

	addConfigFlags(cmd)
	cmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "run pending migrations before serving")

	return cmd
}

func runServe(cmd *cobra.Command, migrateOnStart bool) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("doorkeep", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateOnStart {
		if err := migrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	pool, err := store.Connect(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionRepository(pool)
	svc, err := auth.NewServiceWithLogger(users, sessions, auth.NewArgon2idHasher(), logger)
	if err != nil {
		return err
	}

	var obsErr <-chan error
	var obs *observability.Server
	var metrics *observability.Metrics
	if cfg.Observability.Addr != "" {
		obs = observability.NewServer(cfg.Observability.Addr, func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx) == nil
		})
		metrics = obs.Metrics()

		obsErr, err = obs.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		logger.Info("observability server started", "addr", obs.Addr())
	}

	srv, err := server.New(cfg, svc, metrics, logger)
	if err != nil {
		return err
	}

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-srvErr:
		if err != nil {
			return err
		}
	case err = <-obsErr:
		if err != nil {
			return oops.Code("OBSERVABILITY_FAILED").Wrap(err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", "error", err)
	}
	if obs != nil {
		if err := obs.Stop(shutdownCtx); err != nil {
			logger.Warn("observability server shutdown failed", "error", err)
		}
	}

	logger.Info("server stopped")
	return nil
}
