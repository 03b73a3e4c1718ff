// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domain defines the value types moved through the sync core.
//
// The core treats an Issue as an opaque record: it merges, filters, and
// relays issues but interprets nothing beyond the timestamps and the
// status/type/project strings used for filtering. All timestamps are Unix
// milliseconds, matching the wire format agents exchange.
package domain

import "time"

// Status is the lifecycle state of an issue.
//
// StatusBlocked may appear as data coming from agents; it is not a state
// the core transitions issues into, it only flows through.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
	StatusBlocked    Status = "blocked"
)

// ValidStatus reports whether s is a status the core accepts in mutations.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed, StatusBlocked:
		return true
	default:
		return false
	}
}

// Comment is one entry in an issue's ordered comment sequence.
type Comment struct {
	Author    string `json:"author,omitempty"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// Issue is the unit of synchronized work-item data.
//
// Identity is the ID; every other field is mutable. CreatedAt/UpdatedAt are
// the business timestamps that drive conflict resolution; ClosedAt is set
// when the issue transitions to closed.
type Issue struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Status    Status    `json:"status,omitempty"`
	IssueType string    `json:"issue_type,omitempty"`
	Project   string    `json:"project,omitempty"`
	CreatedAt int64     `json:"created_at,omitempty"`
	UpdatedAt int64     `json:"updated_at,omitempty"`
	ClosedAt  int64     `json:"closed_at,omitempty"`
	Comments  []Comment `json:"comments,omitempty"`
}

// BusinessTime returns the timestamp used for last-writer-wins comparison:
// updated_at when set, else created_at, else 0.
func (i Issue) BusinessTime() int64 {
	if i.UpdatedAt != 0 {
		return i.UpdatedAt
	}
	return i.CreatedAt
}

// Clone returns a deep copy. Comments are copied so the caller cannot
// mutate shared state through the result.
func (i Issue) Clone() Issue {
	out := i
	if i.Comments != nil {
		out.Comments = make([]Comment, len(i.Comments))
		copy(out.Comments, i.Comments)
	}
	return out
}

// CloneIssues deep-copies a slice of issues preserving order.
func CloneIssues(issues []Issue) []Issue {
	out := make([]Issue, len(issues))
	for n, it := range issues {
		out[n] = it.Clone()
	}
	return out
}

// NowMillis returns the current wall clock in Unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
