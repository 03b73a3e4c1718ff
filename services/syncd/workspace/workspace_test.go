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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStartsEmpty(t *testing.T) {
	var s State
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestInitResolvesDefaults(t *testing.T) {
	var s State
	root := t.TempDir()

	ws := s.Init(root, "")
	assert.Equal(t, root, ws.RootDir)
	assert.Equal(t, filepath.Join(root, ".beads", "issues.db"), ws.DBPath)

	got, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, ws, got)
}

func TestSetReplacesCurrent(t *testing.T) {
	var s State
	s.Init(t.TempDir(), "")

	other := t.TempDir()
	ws := s.Set(other, "/var/db/custom.db")
	assert.Equal(t, other, ws.RootDir)
	assert.Equal(t, "/var/db/custom.db", ws.DBPath)

	got, _ := s.Current()
	assert.Equal(t, ws, got)
}

func TestRegistryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry", "workspaces.json")

	r, err := OpenRegistry(path, nil)
	require.NoError(t, err)
	assert.Empty(t, r.Entries())

	require.NoError(t, r.Register(Workspace{RootDir: "/work/b", DBPath: "/work/b/.beads/issues.db"}))
	require.NoError(t, r.Register(Workspace{RootDir: "/work/a", DBPath: "/work/a/.beads/issues.db"}))

	// Replacing an entry keeps the set deduplicated.
	require.NoError(t, r.Register(Workspace{RootDir: "/work/a", DBPath: "/elsewhere.db"}))

	reloaded, err := OpenRegistry(path, nil)
	require.NoError(t, err)

	entries := reloaded.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "/work/a", entries[0].RootDir)
	assert.Equal(t, "/elsewhere.db", entries[0].DBPath)
	assert.Equal(t, "/work/b", entries[1].RootDir)
}

func TestOpenRegistryRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspaces.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenRegistry(path, nil)
	assert.Error(t, err)
}
