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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

// Persistence is a full overwrite of one JSON array, replaced atomically.
// There is no journal: a crash between a merge and the next successful write
// loses that merge. That window is accepted by design; the in-memory map
// stays authoritative for the running process.

func loadRecords(path string) ([]domain.SyncRecord, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("relay: read %q: %w", path, err)
	}

	var records []domain.SyncRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("relay: decode %q: %w", path, err)
	}
	return records, nil
}

// persistLocked writes the full map to disk. Caller holds r.mu. Failures
// are logged, counted, and swallowed: the current process keeps serving
// from memory even when the on-disk copy is stale.
func (r *Relay) persistLocked() {
	if r.path == "" {
		return
	}

	records := make([]domain.SyncRecord, 0, len(r.order))
	for _, id := range r.order {
		if rec, ok := r.records[id]; ok {
			records = append(records, rec)
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		persistFailures.Inc()
		r.log.Error("sync store encode failed", "error", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		persistFailures.Inc()
		r.log.Error("sync store mkdir failed", "path", r.path, "error", err)
		return
	}
	if err := atomic.WriteFile(r.path, bytes.NewReader(data)); err != nil {
		persistFailures.Inc()
		r.log.Error("sync store write failed", "path", r.path, "error", err)
		return
	}
	r.log.Debug("sync store persisted", "records", len(records), "path", r.path)
}
