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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	statusAddr  string // Daemon base URL
	statusToken string // Sync token, when the daemon is guarded
	statusJSON  bool   // Raw JSON output for scripting
)

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://127.0.0.1:4400",
		"Base URL of the daemon")
	statusCmd.Flags().StringVar(&statusToken, "token", "", "Sync token")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runStatusCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newDaemonClient(statusAddr, statusToken)

	var status struct {
		OK        bool  `json:"ok"`
		Records   int   `json:"records"`
		Timestamp int64 `json:"timestamp"`
	}
	if err := client.getJSON(ctx, "/api/sync/status", &status); err != nil {
		fmt.Fprintf(os.Stderr, "Status check failed: %v\n", err)
		os.Exit(1)
	}

	if statusJSON {
		data, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Daemon:  %s\n", statusAddr)
	fmt.Printf("Records: %d\n", status.Records)
	fmt.Printf("As of:   %s\n", time.UnixMilli(status.Timestamp).Format(time.RFC3339))
}
