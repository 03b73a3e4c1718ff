// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package views derives UI-facing projections from subscription snapshots.
package views

import (
	"sort"
	"strings"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

// FilterConfig is the user's current filter selection. Facets combine with
// logical AND; an empty facet slice means no constraint for that facet.
type FilterConfig struct {
	// Statuses is a multi-select status facet. The pseudo-status "ready"
	// matches issues that are open and not blocked.
	Statuses []string

	// Types is a multi-select issue type facet.
	Types []string

	// Projects is a multi-select project path facet.
	Projects []string

	// Search is a case-insensitive substring match over id and title.
	Search string

	// OnlyFlagged restricts the result to ids in Flagged. It is a no-op
	// when Flagged is empty.
	OnlyFlagged bool
	Flagged     map[string]struct{}
}

// Compose derives the ordered, filtered projection of a snapshot.
//
// It is a pure function: the input slice is never mutated and the result
// shares no memory with it. Default ordering is snapshot order; when the
// status facet is exactly ["closed"], ordering switches to descending close
// timestamp.
func Compose(snapshot []domain.Issue, cfg FilterConfig) []domain.Issue {
	out := make([]domain.Issue, 0, len(snapshot))
	needle := strings.ToLower(cfg.Search)

	for _, is := range snapshot {
		if !statusMatches(cfg.Statuses, is) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(is.ID), needle) &&
			!strings.Contains(strings.ToLower(is.Title), needle) {
			continue
		}
		if len(cfg.Types) > 0 && !contains(cfg.Types, is.IssueType) {
			continue
		}
		if len(cfg.Projects) > 0 && !contains(cfg.Projects, is.Project) {
			continue
		}
		if cfg.OnlyFlagged && len(cfg.Flagged) > 0 {
			if _, ok := cfg.Flagged[is.ID]; !ok {
				continue
			}
		}
		out = append(out, is.Clone())
	}

	if len(cfg.Statuses) == 1 && cfg.Statuses[0] == string(domain.StatusClosed) {
		sort.SliceStable(out, func(a, b int) bool {
			return out[a].ClosedAt > out[b].ClosedAt
		})
	}
	return out
}

func statusMatches(selected []string, is domain.Issue) bool {
	if len(selected) == 0 {
		return true
	}
	for _, s := range selected {
		if s == "ready" {
			if is.Status == domain.StatusOpen {
				return true
			}
			continue
		}
		if string(is.Status) == s {
			return true
		}
	}
	return false
}

func contains(haystack []string, v string) bool {
	for _, h := range haystack {
		if h == v {
			return true
		}
	}
	return false
}
