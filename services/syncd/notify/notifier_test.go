// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyReachesAllListeners(t *testing.T) {
	n := NewNotifier(nil)

	var got []string
	n.Subscribe(func(ev Event) { got = append(got, "a:"+ev.Type) })
	n.Subscribe(func(ev Event) { got = append(got, "b:"+ev.Type) })

	n.Notify(EventRecordsChanged, nil)

	assert.ElementsMatch(t, []string{"a:records-changed", "b:records-changed"}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	n := NewNotifier(nil)

	count := 0
	unsub := n.Subscribe(func(Event) { count++ })

	n.Notify(EventRecordsChanged, nil)
	unsub()
	unsub() // idempotent
	n.Notify(EventRecordsChanged, nil)

	assert.Equal(t, 1, count)
}

func TestListenerMutationDuringDispatchIsSafe(t *testing.T) {
	n := NewNotifier(nil)

	calls := 0
	var unsub func()
	unsub = n.Subscribe(func(Event) {
		calls++
		// Unsubscribing and subscribing mid-dispatch must not corrupt the
		// current round.
		unsub()
		n.Subscribe(func(Event) { calls += 10 })
	})

	n.Notify(EventRecordsChanged, nil)
	assert.Equal(t, 1, calls, "new listener must not fire in the same round")

	n.Notify(EventRecordsChanged, nil)
	assert.Equal(t, 11, calls, "original listener gone, new one fires once")
}

func TestPanickingListenerDoesNotStopOthers(t *testing.T) {
	n := NewNotifier(nil)

	reached := false
	n.Subscribe(func(Event) { panic("boom") })
	n.Subscribe(func(Event) { reached = true })

	n.Notify(EventRecordsChanged, nil)
	assert.True(t, reached)
}

func TestWatcherCoalescesBurstIntoOneSignal(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sync-store.json")
	require.NoError(t, os.WriteFile(target, []byte("[]"), 0o644))

	n := NewNotifier(nil)
	signals := make(chan Event, 16)
	n.Subscribe(func(ev Event) { signals <- ev })

	w, err := NewWatcher(n, []string{target}, WatcherOptions{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	// Burst of writes inside the debounce window.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte("[]"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case ev := <-signals:
		assert.Equal(t, EventRecordsChanged, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal delivered")
	}

	// The burst must not produce a second signal.
	select {
	case <-signals:
		t.Fatal("burst produced more than one signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sync-store.json")
	other := filepath.Join(dir, "unrelated.txt")
	require.NoError(t, os.WriteFile(target, []byte("[]"), 0o644))

	n := NewNotifier(nil)
	signals := make(chan Event, 16)
	n.Subscribe(func(ev Event) { signals <- ev })

	w, err := NewWatcher(n, []string{target}, WatcherOptions{Debounce: 30 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	select {
	case <-signals:
		t.Fatal("unrelated file triggered a signal")
	case <-time.After(200 * time.Millisecond):
	}
}
