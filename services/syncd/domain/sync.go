// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

// SyncRecord is an Issue plus the receipt metadata stamped by the relay at
// merge time. The receipt fields are audit-only; they never participate in
// conflict comparison.
type SyncRecord struct {
	Issue

	SyncedAt   int64  `json:"synced_at,omitempty"`
	SyncedBy   string `json:"synced_by,omitempty"`
	SyncedFrom string `json:"synced_from,omitempty"`
}

// CloneRecord deep-copies a sync record.
func (r SyncRecord) CloneRecord() SyncRecord {
	out := r
	out.Issue = r.Issue.Clone()
	return out
}

// ConflictReport describes one losing record in a push batch. It is built
// per operation and returned in the push response, never persisted.
type ConflictReport struct {
	ID           string `json:"id"`
	ExistingTime int64  `json:"existing_time"`
	IncomingTime int64  `json:"incoming_time"`
	Resolution   string `json:"resolution"`
}

// ResolutionKeptExisting is the only resolution the relay currently emits:
// the incoming record lost the timestamp comparison and was discarded.
const ResolutionKeptExisting = "kept_existing"

// SnapshotEnvelope is one revisioned, complete view of a subscription key.
//
// Revision is a per-key strictly increasing integer and is the sole
// ordering token; arrival time must never be used to order envelopes.
type SnapshotEnvelope struct {
	Key      string  `json:"id"`
	Revision int64   `json:"revision"`
	Issues   []Issue `json:"issues"`
}
