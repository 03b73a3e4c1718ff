// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relay

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
	"github.com/AleutianAI/beadsync/services/syncd/notify"
)

func openTestRelay(t *testing.T) *Relay {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "sync-store.json"), nil, nil)
	require.NoError(t, err)
	return r
}

func TestPushCreatesNewRecords(t *testing.T) {
	r := openTestRelay(t)

	res := r.Push(context.Background(), []domain.Issue{
		{ID: "UI-1", Title: "one", UpdatedAt: 100},
		{ID: "UI-2", Title: "two", UpdatedAt: 200},
	}, "agentA", "alice")

	assert.Len(t, res.Created, 2)
	assert.Empty(t, res.Updated)
	assert.Empty(t, res.Conflicts)

	rec, ok := r.Get("UI-1")
	require.True(t, ok)
	assert.Equal(t, "one", rec.Title)
	assert.Equal(t, "alice", rec.SyncedBy)
	assert.Equal(t, "agentA", rec.SyncedFrom)
	assert.NotZero(t, rec.SyncedAt)
}

func TestPushSkipsRecordsWithoutID(t *testing.T) {
	r := openTestRelay(t)

	res := r.Push(context.Background(), []domain.Issue{
		{Title: "no id"},
		{ID: "UI-1", UpdatedAt: 10},
	}, "agentA", "")

	assert.Len(t, res.Created, 1)
	assert.Equal(t, 1, r.Count())
}

func TestConflictDeterminism(t *testing.T) {
	// Record "UI-1" exists with updated_at=100; agent B pushes updated_at=90.
	r := openTestRelay(t)
	r.Push(context.Background(), []domain.Issue{{ID: "UI-1", Title: "kept", UpdatedAt: 100}}, "agentA", "")

	res := r.Push(context.Background(), []domain.Issue{{ID: "UI-1", Title: "loser", UpdatedAt: 90}}, "agentB", "bob")

	require.Len(t, res.Conflicts, 1)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Updated)
	assert.Equal(t, domain.ConflictReport{
		ID:           "UI-1",
		ExistingTime: 100,
		IncomingTime: 90,
		Resolution:   "kept_existing",
	}, res.Conflicts[0])

	rec, ok := r.Get("UI-1")
	require.True(t, ok)
	assert.Equal(t, "kept", rec.Title)
	assert.Equal(t, int64(100), rec.UpdatedAt)
}

func TestEqualTimestampFavorsIncoming(t *testing.T) {
	// Record "UI-2" exists with updated_at=50; a push with updated_at=50
	// must win per the >= tie-break.
	r := openTestRelay(t)
	r.Push(context.Background(), []domain.Issue{{ID: "UI-2", Title: "old", UpdatedAt: 50}}, "agentA", "")

	res := r.Push(context.Background(), []domain.Issue{{ID: "UI-2", Title: "new", UpdatedAt: 50}}, "agentB", "")

	require.Len(t, res.Updated, 1)
	assert.Empty(t, res.Conflicts)

	rec, ok := r.Get("UI-2")
	require.True(t, ok)
	assert.Equal(t, "new", rec.Title)
}

func TestBusinessTimeFallsBackToCreatedAt(t *testing.T) {
	r := openTestRelay(t)
	r.Push(context.Background(), []domain.Issue{{ID: "UI-1", CreatedAt: 100}}, "agentA", "")

	// Incoming has only created_at=90 -> conflict against existing 100.
	res := r.Push(context.Background(), []domain.Issue{{ID: "UI-1", CreatedAt: 90}}, "agentB", "")
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, int64(100), res.Conflicts[0].ExistingTime)
	assert.Equal(t, int64(90), res.Conflicts[0].IncomingTime)
}

func TestPullRoundTrip(t *testing.T) {
	r := openTestRelay(t)
	pushed := []domain.Issue{
		{ID: "UI-1", Title: "a", UpdatedAt: 100},
		{ID: "UI-2", Title: "b", UpdatedAt: 200},
		{ID: "UI-3", Title: "c", CreatedAt: 300},
	}
	r.Push(context.Background(), pushed, "agentA", "")

	records, total := r.Pull(0)
	assert.Equal(t, 3, total)
	require.Len(t, records, 3)
	for n, rec := range records {
		assert.Equal(t, pushed[n].ID, rec.ID)
		assert.Equal(t, pushed[n].Title, rec.Title)
	}

	// A since after every business timestamp returns the empty set.
	records, total = r.Pull(300)
	assert.Equal(t, 3, total)
	assert.Empty(t, records)

	// A since between timestamps filters strictly.
	records, _ = r.Pull(100)
	require.Len(t, records, 2)
	assert.Equal(t, "UI-2", records[0].ID)
	assert.Equal(t, "UI-3", records[1].ID)
}

func TestDelete(t *testing.T) {
	r := openTestRelay(t)
	r.Push(context.Background(), []domain.Issue{{ID: "UI-1", UpdatedAt: 1}}, "agentA", "")

	assert.True(t, r.Delete("UI-1", "alice"))
	assert.False(t, r.Delete("UI-1", "alice"))
	assert.Equal(t, 0, r.Count())
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync-store.json")

	r, err := Open(path, nil, nil)
	require.NoError(t, err)
	r.Push(context.Background(), []domain.Issue{
		{ID: "UI-1", Title: "persisted", UpdatedAt: 100},
		{ID: "UI-2", Title: "also", UpdatedAt: 200},
	}, "agentA", "alice")

	r2, err := Open(path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r2.Count())

	rec, ok := r2.Get("UI-1")
	require.True(t, ok)
	assert.Equal(t, "persisted", rec.Title)
	assert.Equal(t, "alice", rec.SyncedBy)

	// Insertion order survives the reload.
	records, _ := r2.Pull(0)
	require.Len(t, records, 2)
	assert.Equal(t, "UI-1", records[0].ID)
	assert.Equal(t, "UI-2", records[1].ID)
}

func TestPushEmitsOneChangeNotification(t *testing.T) {
	n := notify.NewNotifier(nil)
	var events []notify.Event
	n.Subscribe(func(ev notify.Event) { events = append(events, ev) })

	r, err := Open(filepath.Join(t.TempDir(), "sync-store.json"), n, nil)
	require.NoError(t, err)

	r.Push(context.Background(), []domain.Issue{
		{ID: "UI-1", UpdatedAt: 10},
		{ID: "UI-2", UpdatedAt: 20},
	}, "agentA", "alice")

	require.Len(t, events, 1, "one batch, one notification")
	assert.Equal(t, notify.EventRecordsSynced, events[0].Type)
	data, ok := events[0].Data.(notify.SyncedData)
	require.True(t, ok)
	assert.Len(t, data.Created, 2)
	assert.Equal(t, "agentA", data.Source)
	assert.Equal(t, "alice", data.User)
}

func TestConflictOnlyBatchEmitsNoNotification(t *testing.T) {
	n := notify.NewNotifier(nil)
	count := 0

	r, err := Open(filepath.Join(t.TempDir(), "sync-store.json"), n, nil)
	require.NoError(t, err)
	r.Push(context.Background(), []domain.Issue{{ID: "UI-1", UpdatedAt: 100}}, "agentA", "")

	n.Subscribe(func(notify.Event) { count++ })
	r.Push(context.Background(), []domain.Issue{{ID: "UI-1", UpdatedAt: 50}}, "agentB", "")

	assert.Zero(t, count)
}

func TestDeleteEmitsDeletionNotification(t *testing.T) {
	n := notify.NewNotifier(nil)
	var events []notify.Event
	n.Subscribe(func(ev notify.Event) { events = append(events, ev) })

	r, err := Open(filepath.Join(t.TempDir(), "sync-store.json"), n, nil)
	require.NoError(t, err)
	r.Push(context.Background(), []domain.Issue{{ID: "UI-1", UpdatedAt: 10}}, "agentA", "")
	events = nil

	r.Delete("UI-1", "alice")

	require.Len(t, events, 1)
	assert.Equal(t, notify.EventRecordDeleted, events[0].Type)
	data, ok := events[0].Data.(notify.DeletedData)
	require.True(t, ok)
	assert.Equal(t, "UI-1", data.ID)
	assert.Equal(t, "alice", data.User)
}
