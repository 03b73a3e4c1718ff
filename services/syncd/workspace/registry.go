// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/natefinch/atomic"
)

// Registry is the persisted set of known workspaces, keyed by root
// directory. Writes replace the whole file atomically so concurrent readers
// (other daemons, the file watcher) never observe a torn state.
type Registry struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	entries map[string]Workspace
}

// OpenRegistry loads the registry file, treating an absent file as empty.
func OpenRegistry(path string, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{path: path, log: log, entries: make(map[string]Workspace)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace registry: %w", err)
	}

	var list []Workspace
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("workspace registry is corrupt: %w", err)
	}
	for _, ws := range list {
		r.entries[ws.RootDir] = ws
	}
	log.Info("workspace registry loaded", "path", path, "entries", len(r.entries))
	return r, nil
}

// Path returns the registry's backing file, for wiring a file watcher.
func (r *Registry) Path() string {
	return r.path
}

// Register adds or replaces one workspace and persists the registry.
func (r *Registry) Register(ws Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[ws.RootDir] = ws
	if err := r.persistLocked(); err != nil {
		return err
	}
	r.log.Info("workspace registered", "root", ws.RootDir, "db", ws.DBPath)
	return nil
}

// Entries returns every known workspace, ordered by root directory.
func (r *Registry) Entries() []Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Workspace, 0, len(r.entries))
	for _, ws := range r.entries {
		out = append(out, ws)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].RootDir < out[b].RootDir })
	return out
}

func (r *Registry) persistLocked() error {
	out := make([]Workspace, 0, len(r.entries))
	for _, ws := range r.entries {
		out = append(out, ws)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].RootDir < out[b].RootDir })

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workspace registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	if err := atomic.WriteFile(r.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write workspace registry: %w", err)
	}
	return nil
}
