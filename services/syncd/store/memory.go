// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"sync"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

// MemStore is an in-memory Store. It backs tests and ephemeral runs where
// durability is not wanted.
//
// Safe for concurrent use.
type MemStore struct {
	mu     sync.RWMutex
	issues map[string]domain.Issue

	// Now supplies business timestamps for mutations. Tests override it
	// for deterministic clocks.
	Now func() int64
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		issues: make(map[string]domain.Issue),
		Now:    domain.NowMillis,
	}
}

// List returns issues matching f ordered by creation time then id.
func (m *MemStore) List(_ context.Context, f Filter) ([]domain.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Issue, 0, len(m.issues))
	for _, is := range m.issues {
		if f.Matches(is) {
			out = append(out, is.Clone())
		}
	}
	sortIssues(out)
	return out, nil
}

// Get returns the issue with the given id or ErrNotFound.
func (m *MemStore) Get(_ context.Context, id string) (domain.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	is, ok := m.issues[id]
	if !ok {
		return domain.Issue{}, ErrNotFound
	}
	return is.Clone(), nil
}

// Create inserts a new issue, stamping created_at when unset.
func (m *MemStore) Create(_ context.Context, is domain.Issue) error {
	if is.ID == "" {
		return ErrMissingID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.issues[is.ID]; ok {
		return ErrExists
	}
	if is.CreatedAt == 0 {
		is.CreatedAt = m.Now()
	}
	m.issues[is.ID] = is.Clone()
	return nil
}

// Put inserts or overwrites an issue as-is. Used by the relay feedback path
// where timestamps arrive already stamped.
func (m *MemStore) Put(_ context.Context, is domain.Issue) error {
	if is.ID == "" {
		return ErrMissingID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.issues[is.ID] = is.Clone()
	return nil
}

// UpdateStatus transitions an issue, stamping updated_at and, for closed,
// closed_at.
func (m *MemStore) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	is, ok := m.issues[id]
	if !ok {
		return ErrNotFound
	}
	now := m.Now()
	is.Status = status
	is.UpdatedAt = now
	if status == domain.StatusClosed {
		is.ClosedAt = now
	} else {
		is.ClosedAt = 0
	}
	m.issues[id] = is
	return nil
}

// AddComment appends a comment, stamping its created_at and the issue's
// updated_at.
func (m *MemStore) AddComment(_ context.Context, id string, c domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	is, ok := m.issues[id]
	if !ok {
		return ErrNotFound
	}
	now := m.Now()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	is.Comments = append(is.Comments, c)
	is.UpdatedAt = now
	m.issues[id] = is
	return nil
}

// Delete removes an issue or returns ErrNotFound.
func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.issues[id]; !ok {
		return ErrNotFound
	}
	delete(m.issues, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error { return nil }
