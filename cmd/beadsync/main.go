// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command beadsync runs the issue sync daemon and its companion tooling.
//
// Usage:
//
//	beadsync serve                       # start the daemon on 127.0.0.1:4400
//	beadsync serve --port 9400 --token s # custom port, token-guarded API
//	beadsync status                      # query a running daemon
//	beadsync workspace list              # show registered workspaces
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
