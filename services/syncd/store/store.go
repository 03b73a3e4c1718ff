// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the authoritative issue store boundary and its
// embedded implementations.
//
// The sync core only depends on the Store interface; the scheduler queries
// it, the push-channel operations mutate through it. BadgerStore is the
// durable implementation, MemStore the ephemeral one used by tests and
// in-memory runs.
package store

import (
	"context"
	"errors"
	"slices"
	"sort"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

// Sentinel errors for the store boundary.
var (
	// ErrNotFound indicates the requested issue id is absent.
	ErrNotFound = errors.New("issue not found")

	// ErrExists indicates a create collided with an existing id.
	ErrExists = errors.New("issue already exists")

	// ErrMissingID indicates a record without an id was submitted.
	ErrMissingID = errors.New("issue id is required")
)

// Filter selects a subset of issues. Empty facet slices mean "no constraint"
// for that facet, never "exclude all". Facets combine with logical AND.
type Filter struct {
	// Statuses narrows by status. The pseudo-status "ready" matches issues
	// that are open and not blocked.
	Statuses []string `json:"statuses,omitempty"`

	// Types narrows by issue type tag.
	Types []string `json:"types,omitempty"`

	// Projects narrows by project path.
	Projects []string `json:"projects,omitempty"`
}

// Matches reports whether the issue passes every active facet.
func (f Filter) Matches(is domain.Issue) bool {
	if len(f.Statuses) > 0 && !statusMatches(f.Statuses, is.Status) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, is.IssueType) {
		return false
	}
	if len(f.Projects) > 0 && !slices.Contains(f.Projects, is.Project) {
		return false
	}
	return true
}

func statusMatches(wanted []string, s domain.Status) bool {
	for _, w := range wanted {
		if w == "ready" {
			if s == domain.StatusOpen {
				return true
			}
			continue
		}
		if w == string(s) {
			return true
		}
	}
	return false
}

// Store is the authoritative issue store consumed by the sync core.
//
// List returns a fresh, deterministically ordered slice; callers own the
// result. Mutations stamp business timestamps; implementations report
// ErrNotFound when a specific record is required and absent.
type Store interface {
	List(ctx context.Context, f Filter) ([]domain.Issue, error)
	Get(ctx context.Context, id string) (domain.Issue, error)
	Create(ctx context.Context, is domain.Issue) error
	Put(ctx context.Context, is domain.Issue) error
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	AddComment(ctx context.Context, id string, c domain.Comment) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// sortIssues orders by creation time, then id, so both implementations
// return identical sequences for identical content.
func sortIssues(issues []domain.Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		if issues[a].CreatedAt != issues[b].CreatedAt {
			return issues[a].CreatedAt < issues[b].CreatedAt
		}
		return issues[a].ID < issues[b].ID
	})
}
