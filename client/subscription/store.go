// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package subscription holds the client-side per-key snapshot state.
//
// A Store keeps the most advanced snapshot envelope it has seen for one
// subscription key. Revision comparison is the only ordering mechanism:
// envelopes can arrive late, reordered, or duplicated, and the held state
// still converges to the highest revision ever delivered.
package subscription

import (
	"sync"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

// Listener is invoked synchronously after each accepted push.
type Listener func()

// Store tracks one subscription key's snapshot and revision.
type Store struct {
	key string

	mu        sync.Mutex
	has       bool
	revision  int64
	issues    []domain.Issue
	listeners map[int]Listener
	nextID    int
}

// NewStore creates an empty store for the given key.
func NewStore(key string) *Store {
	return &Store{
		key:       key,
		listeners: make(map[int]Listener),
	}
}

// Key returns the subscription key this store tracks.
func (s *Store) Key() string {
	return s.key
}

// ApplyPush applies an envelope, reporting whether it was accepted.
//
// An envelope whose revision does not strictly advance the held revision is
// discarded with no state change and no listener notification. The first
// envelope ever seen is always accepted, whatever its revision value.
func (s *Store) ApplyPush(env domain.SnapshotEnvelope) bool {
	s.mu.Lock()
	if s.has && env.Revision <= s.revision {
		s.mu.Unlock()
		return false
	}
	s.has = true
	s.revision = env.Revision
	s.issues = domain.CloneIssues(env.Issues)

	// Stable copy: a listener mutating the set mid-notification must not
	// affect this round.
	snapshot := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		snapshot = append(snapshot, l)
	}
	s.mu.Unlock()

	for _, l := range snapshot {
		l()
	}
	return true
}

// Revision returns the held revision, and false before the first push.
func (s *Store) Revision() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision, s.has
}

// Snapshot returns the held issue sequence as a defensive copy.
func (s *Store) Snapshot() []domain.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneIssues(s.issues)
}

// Subscribe registers a listener and returns its idempotent unsubscribe.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Registry is a set of Stores keyed by subscription key, created on first
// use. It is the dispatch target for incoming snapshot pushes.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Store returns the store for key, creating it if needed.
func (r *Registry) Store(key string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stores[key]
	if !ok {
		st = NewStore(key)
		r.stores[key] = st
	}
	return st
}

// Dispatch routes an envelope to its key's store, reporting acceptance.
func (r *Registry) Dispatch(env domain.SnapshotEnvelope) bool {
	return r.Store(env.Key).ApplyPush(env)
}
