// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

func sample() []domain.Issue {
	return []domain.Issue{
		{ID: "UI-1", Title: "Fix login flow", Status: domain.StatusOpen, IssueType: "bug", Project: "/work/app"},
		{ID: "UI-2", Title: "Write docs", Status: domain.StatusInProgress, IssueType: "task", Project: "/work/app"},
		{ID: "UI-3", Title: "Ship beta", Status: domain.StatusClosed, IssueType: "epic", Project: "/work/site", ClosedAt: 100},
		{ID: "UI-4", Title: "Old cleanup", Status: domain.StatusClosed, IssueType: "task", Project: "/work/app", ClosedAt: 300},
		{ID: "UI-5", Title: "Blocked work", Status: domain.StatusBlocked, IssueType: "bug", Project: "/work/site"},
	}
}

func composeIDs(snapshot []domain.Issue, cfg FilterConfig) []string {
	out := Compose(snapshot, cfg)
	got := make([]string, len(out))
	for i, is := range out {
		got[i] = is.ID
	}
	return got
}

func TestNoFiltersKeepsSnapshotOrder(t *testing.T) {
	got := composeIDs(sample(), FilterConfig{})
	assert.Equal(t, []string{"UI-1", "UI-2", "UI-3", "UI-4", "UI-5"}, got)
}

func TestEmptyFacetMeansNoConstraint(t *testing.T) {
	got := composeIDs(sample(), FilterConfig{Statuses: []string{}, Types: []string{}, Projects: []string{}})
	assert.Len(t, got, 5, "empty selections never mean exclude-all")
}

func TestStatusFacetORsWithinAndANDsAcross(t *testing.T) {
	got := composeIDs(sample(), FilterConfig{Statuses: []string{"open", "in_progress"}})
	assert.Equal(t, []string{"UI-1", "UI-2"}, got)

	got = composeIDs(sample(), FilterConfig{
		Statuses: []string{"open", "in_progress"},
		Projects: []string{"/work/app"},
		Types:    []string{"bug"},
	})
	assert.Equal(t, []string{"UI-1"}, got, "facets combine with AND")
}

func TestReadyMatchesOpenNotBlocked(t *testing.T) {
	got := composeIDs(sample(), FilterConfig{Statuses: []string{"ready"}})
	assert.Equal(t, []string{"UI-1"}, got)
}

func TestSearchMatchesIDAndTitleCaseInsensitive(t *testing.T) {
	got := composeIDs(sample(), FilterConfig{Search: "LOGIN"})
	assert.Equal(t, []string{"UI-1"}, got)

	got = composeIDs(sample(), FilterConfig{Search: "ui-4"})
	assert.Equal(t, []string{"UI-4"}, got)

	got = composeIDs(sample(), FilterConfig{Search: "zebra"})
	assert.Empty(t, got)
}

func TestFlaggedFilter(t *testing.T) {
	flagged := map[string]struct{}{"UI-2": {}, "UI-5": {}}

	got := composeIDs(sample(), FilterConfig{OnlyFlagged: true, Flagged: flagged})
	assert.Equal(t, []string{"UI-2", "UI-5"}, got)

	// An empty flag set disables the predicate instead of hiding everything.
	got = composeIDs(sample(), FilterConfig{OnlyFlagged: true})
	assert.Len(t, got, 5)
}

func TestExactlyClosedSortsByCloseTimeDescending(t *testing.T) {
	got := composeIDs(sample(), FilterConfig{Statuses: []string{"closed"}})
	assert.Equal(t, []string{"UI-4", "UI-3"}, got)

	// Closed among other selections keeps snapshot order.
	got = composeIDs(sample(), FilterConfig{Statuses: []string{"closed", "open"}})
	assert.Equal(t, []string{"UI-1", "UI-3", "UI-4"}, got)
}

func TestComposeIsPure(t *testing.T) {
	snapshot := sample()
	out := Compose(snapshot, FilterConfig{Statuses: []string{"closed"}})
	require.NotEmpty(t, out)

	out[0].Title = "mutated"
	out[0].ID = "mutated"

	assert.Equal(t, "UI-1", snapshot[0].ID, "input never mutated")
	again := Compose(snapshot, FilterConfig{Statuses: []string{"closed"}})
	assert.Equal(t, "UI-4", again[0].ID)
	assert.Equal(t, "Old cleanup", again[0].Title)

	// Same inputs, same output.
	a := composeIDs(snapshot, FilterConfig{Search: "work"})
	b := composeIDs(snapshot, FilterConfig{Search: "work"})
	assert.Equal(t, a, b)
}
