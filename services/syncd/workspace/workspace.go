// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace tracks which project directory the daemon currently
// serves, and a persisted registry of every workspace seen so far so that
// sibling daemons and external tools can discover them.
package workspace

import (
	"path/filepath"
	"sync"
)

// Workspace is one served project directory and its issue database.
type Workspace struct {
	RootDir string `json:"root_dir"`
	DBPath  string `json:"db_path"`
}

// State holds the daemon's current workspace. Zero value is usable.
type State struct {
	mu      sync.RWMutex
	current *Workspace
}

// Init sets the workspace served by this process. The database path
// defaults to <root>/.beads/issues.db when empty.
func (s *State) Init(rootDir, dbPath string) Workspace {
	return s.set(rootDir, dbPath)
}

// Set switches the current workspace and returns the resolved value.
func (s *State) Set(rootDir, dbPath string) Workspace {
	return s.set(rootDir, dbPath)
}

func (s *State) set(rootDir, dbPath string) Workspace {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		abs = rootDir
	}
	if dbPath == "" {
		dbPath = filepath.Join(abs, ".beads", "issues.db")
	}
	ws := Workspace{RootDir: abs, DBPath: dbPath}

	s.mu.Lock()
	s.current = &ws
	s.mu.Unlock()
	return ws
}

// Current returns the active workspace, or false before Init.
func (s *State) Current() (Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Workspace{}, false
	}
	return *s.current, true
}
