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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	workspaceAddr     string // Daemon base URL
	workspaceToken    string // Sync token, when the daemon is guarded
	workspaceDatabase string // Explicit database path for register
)

func init() {
	for _, c := range []*cobra.Command{workspaceListCmd, workspaceRegisterCmd} {
		c.Flags().StringVar(&workspaceAddr, "addr", "http://127.0.0.1:4400",
			"Base URL of the daemon")
		c.Flags().StringVar(&workspaceToken, "token", "", "Sync token")
	}
	workspaceRegisterCmd.Flags().StringVar(&workspaceDatabase, "database", "",
		"Database path (default <path>/.beads/issues.db)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runWorkspaceListCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newDaemonClient(workspaceAddr, workspaceToken)

	var resp struct {
		OK      bool `json:"ok"`
		Current struct {
			RootDir string `json:"root_dir"`
		} `json:"current"`
		Workspaces []struct {
			RootDir string `json:"root_dir"`
			DBPath  string `json:"db_path"`
		} `json:"workspaces"`
	}
	if err := client.getJSON(ctx, "/api/workspaces", &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list workspaces: %v\n", err)
		os.Exit(1)
	}

	if len(resp.Workspaces) == 0 {
		fmt.Println("No workspaces registered.")
		return
	}
	for _, ws := range resp.Workspaces {
		marker := " "
		if ws.RootDir == resp.Current.RootDir {
			marker = "*"
		}
		fmt.Printf("%s %s (%s)\n", marker, ws.RootDir, ws.DBPath)
	}
}

func runWorkspaceRegisterCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path, err := filepath.Abs(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid path %q: %v\n", args[0], err)
		os.Exit(1)
	}
	database := workspaceDatabase
	if database == "" {
		database = filepath.Join(path, ".beads", "issues.db")
	}

	client := newDaemonClient(workspaceAddr, workspaceToken)

	var resp struct {
		OK         bool   `json:"ok"`
		Registered string `json:"registered"`
	}
	body := map[string]string{"path": path, "database": database}
	if err := client.postJSON(ctx, "/api/register-workspace", body, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register workspace: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Registered %s\n", resp.Registered)
}
