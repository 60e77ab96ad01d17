// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Doorkeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doorkeep",
		Short: "Doorkeep - credential authentication service",
		Long: `Doorkeep is a small authentication service providing registration,
login, logout, and server-side session management over a JSON HTTP API.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())

	return cmd
}

// addConfigFlags registers the flags every command that loads the full
// configuration shares. Flag names mirror the config file keys so the
// posflag provider can overlay them directly.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("server.addr", ":8080", "HTTP listen address")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("session.secret", "", "session cookie signing secret")
	cmd.Flags().Bool("session.secure", false, "mark the session cookie Secure")
	cmd.Flags().String("observability.addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log.format", "json", "log format (json or text)")
	cmd.Flags().String("log.level", "info", "log level (debug, info, warn, error)")
}
