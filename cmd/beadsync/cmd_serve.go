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
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/beadsync/pkg/logging"
	"github.com/AleutianAI/beadsync/services/syncd"
	"github.com/AleutianAI/beadsync/services/syncd/config"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	serveHost      string // Override the configured listen host
	servePort      int    // Override the configured listen port
	serveToken     string // Override the configured API token
	serveWorkspace string // Project directory to register on startup
	serveInMemory  bool   // Ephemeral issue store, nothing touches disk
	serveDebug     bool   // Gin debug mode plus debug-level logs
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "API token (overrides config)")
	serveCmd.Flags().StringVarP(&serveWorkspace, "workspace", "w", "",
		"Workspace directory to register with the daemon")
	serveCmd.Flags().BoolVar(&serveInMemory, "in-memory", false,
		"Keep all issues in memory; useful for demos and tests")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug output")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runServeCommand loads the configuration, wires the daemon, and blocks
// until SIGINT or SIGTERM.
func runServeCommand(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyServeOverrides(&cfg)

	if serveDebug {
		gin.SetMode(gin.DebugMode)
		cfg.Logging.Level = "debug"
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "beadsync",
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()

	srv, err := syncd.NewServer(cfg, syncd.ServerOptions{
		Logger:    logger.Slog(),
		UserName:  localUserName(),
		Workspace: serveWorkspace,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("beadsync daemon listening on %s\n", cfg.Server.Addr())
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Daemon exited with error: %v\n", err)
		os.Exit(1)
	}
}

func applyServeOverrides(cfg *config.Config) {
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveToken != "" {
		cfg.Server.Token = serveToken
	}
	if serveInMemory {
		cfg.Store.InMemory = true
		cfg.Store.Path = ""
	}
}

// localUserName is stamped on comments and deletions made through this
// daemon.
func localUserName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "anonymous"
}
