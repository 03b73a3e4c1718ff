// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

var (
	configPath string // --config: path to beadsync.yaml
)

// =============================================================================
// COMMAND TREE
// =============================================================================

var (
	rootCmd = &cobra.Command{
		Use:   "beadsync",
		Short: "A daemon that keeps issue trackers in sync across machines",
		Long: `beadsync serves a local issue database over websocket push and a REST
sync relay, so multiple machines converge on the same set of records.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the sync daemon",
		Long: `Starts the HTTP listener with the websocket push endpoint, the REST
sync API, and the debounced refresh scheduler. Runs until interrupted.`,
		Run: runServeCommand,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Query a running daemon for its sync relay status",
		Run:   runStatusCommand,
	}

	workspaceCmd = &cobra.Command{
		Use:   "workspace",
		Short: "Manage registered workspaces",
	}
	workspaceListCmd = &cobra.Command{
		Use:   "list",
		Short: "List workspaces known to the daemon",
		Run:   runWorkspaceListCommand,
	}
	workspaceRegisterCmd = &cobra.Command{
		Use:   "register [path]",
		Short: "Register a workspace with the daemon",
		Args:  cobra.ExactArgs(1),
		Run:   runWorkspaceRegisterCommand,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the config file (default ~/.beadsync/beadsync.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)

	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceRegisterCmd)
	rootCmd.AddCommand(workspaceCmd)
}
