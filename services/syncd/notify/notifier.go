// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify carries "something changed" signals from writers to the
// refresh pipeline.
//
// Events are advisory: a listener must treat every delivery as "at least one
// change may have happened", never as a precise diff.
package notify

import (
	"log/slog"
	"sync"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

// Event types emitted by the core.
const (
	// EventRecordsChanged signals that issues were mutated through the
	// record store boundary.
	EventRecordsChanged = "records-changed"

	// EventRecordsSynced signals that a push batch merged at least one
	// record. Data is a SyncedData.
	EventRecordsSynced = "records-synced"

	// EventRecordDeleted signals a record removal. Data is a DeletedData.
	EventRecordDeleted = "record-deleted"
)

// Event is one change notification.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// SyncedData is the payload of EventRecordsSynced.
type SyncedData struct {
	Created []domain.SyncRecord `json:"created"`
	Updated []domain.SyncRecord `json:"updated"`
	Source  string              `json:"source"`
	User    string              `json:"user"`
}

// DeletedData is the payload of EventRecordDeleted.
type DeletedData struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

// Listener receives events. It must not block for long; dispatch is
// synchronous.
type Listener func(Event)

// Notifier fans one event out to every registered listener.
//
// Dispatch iterates a snapshot of the listener set taken under the lock, so
// a listener that subscribes or unsubscribes during notification neither
// corrupts iteration nor changes the current round. A panicking listener is
// recovered and logged; it never stops the others.
type Notifier struct {
	mu        sync.Mutex
	seq       int
	listeners map[int]Listener
	log       *slog.Logger
}

// NewNotifier returns an empty notifier.
func NewNotifier(log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		listeners: make(map[int]Listener),
		log:       log,
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribe is idempotent.
func (n *Notifier) Subscribe(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.seq
	n.seq++
	n.listeners[id] = l

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

// Notify dispatches an event of the given type to every listener registered
// at dispatch time.
func (n *Notifier) Notify(eventType string, data any) {
	ev := Event{Type: eventType, Data: data, Timestamp: domain.NowMillis()}

	n.mu.Lock()
	snapshot := make([]Listener, 0, len(n.listeners))
	for _, l := range n.listeners {
		snapshot = append(snapshot, l)
	}
	n.mu.Unlock()

	for _, l := range snapshot {
		n.dispatch(l, ev)
	}
}

func (n *Notifier) dispatch(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("change listener panicked", "event", ev.Type, "panic", r)
		}
	}()
	l(ev)
}
