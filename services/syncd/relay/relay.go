// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package relay merges batched issue submissions from independent writer
// agents into one authoritative record set.
//
// Conflict resolution is whole-record last-writer-wins by business
// timestamp (updated_at, falling back to created_at). A tie favors the
// incoming record. Receipt metadata stamped at merge time is audit-only and
// never participates in the comparison.
//
// The authoritative map is mutated only under one mutex: a push batch, a
// delete, and the synchronous persistence that follows each are a single
// turn, mirroring the event-loop serialization of the protocol this
// implements.
package relay

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
	"github.com/AleutianAI/beadsync/services/syncd/notify"
)

var tracer = otel.Tracer("beadsync/relay")

// Relay holds the authoritative record map.
type Relay struct {
	mu      sync.Mutex
	records map[string]domain.SyncRecord
	order   []string // insertion order of ids, for stable pull output

	path     string
	notifier *notify.Notifier
	log      *slog.Logger

	// Now supplies receipt timestamps. Tests override it.
	Now func() int64
}

// PushResult reports the outcome of one push batch.
type PushResult struct {
	Created   []domain.SyncRecord
	Updated   []domain.SyncRecord
	Conflicts []domain.ConflictReport
}

// Open loads the authoritative map from path (an absent file means an empty
// set) and returns a ready relay. notifier may be nil when no broadcast
// chaining is wanted (tests).
func Open(path string, notifier *notify.Notifier, log *slog.Logger) (*Relay, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Relay{
		records:  make(map[string]domain.SyncRecord),
		path:     path,
		notifier: notifier,
		log:      log,
		Now:      domain.NowMillis,
	}

	loaded, err := loadRecords(path)
	if err != nil {
		return nil, err
	}
	for _, rec := range loaded {
		if rec.ID == "" {
			continue
		}
		if _, ok := r.records[rec.ID]; !ok {
			r.order = append(r.order, rec.ID)
		}
		r.records[rec.ID] = rec
	}
	log.Info("sync relay loaded", "records", len(r.records), "path", path)
	return r, nil
}

// Push merges a batch submitted by user from source. Records without an id
// are skipped. The merged map is persisted synchronously before returning;
// a persistence failure is logged and the in-memory state stays
// authoritative for this process.
func (r *Relay) Push(ctx context.Context, batch []domain.Issue, source, user string) PushResult {
	_, span := tracer.Start(ctx, "relay.push")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.size", len(batch)),
		attribute.String("batch.source", source),
	)

	if source == "" {
		source = "unknown"
	}
	if user == "" {
		user = "anonymous"
	}

	r.mu.Lock()
	var res PushResult
	for _, in := range batch {
		if in.ID == "" {
			continue
		}

		existing, ok := r.records[in.ID]
		if !ok {
			rec := r.stamp(in, source, user)
			r.records[in.ID] = rec
			r.order = append(r.order, in.ID)
			res.Created = append(res.Created, rec.CloneRecord())
			mergeOutcomes.WithLabelValues("created").Inc()
			continue
		}

		existingTime := existing.BusinessTime()
		incomingTime := in.BusinessTime()
		if incomingTime >= existingTime {
			// Tie favors the incoming record. Deliberate policy carried
			// over from the source protocol.
			rec := r.stamp(in, source, user)
			r.records[in.ID] = rec
			res.Updated = append(res.Updated, rec.CloneRecord())
			mergeOutcomes.WithLabelValues("updated").Inc()
		} else {
			res.Conflicts = append(res.Conflicts, domain.ConflictReport{
				ID:           in.ID,
				ExistingTime: existingTime,
				IncomingTime: incomingTime,
				Resolution:   domain.ResolutionKeptExisting,
			})
			mergeOutcomes.WithLabelValues("conflict").Inc()
		}
	}
	r.persistLocked()
	r.mu.Unlock()

	span.SetAttributes(
		attribute.Int("merge.created", len(res.Created)),
		attribute.Int("merge.updated", len(res.Updated)),
		attribute.Int("merge.conflicts", len(res.Conflicts)),
	)

	if r.notifier != nil && (len(res.Created) > 0 || len(res.Updated) > 0) {
		r.notifier.Notify(notify.EventRecordsSynced, notify.SyncedData{
			Created: res.Created,
			Updated: res.Updated,
			Source:  source,
			User:    user,
		})
	}
	return res
}

// Pull returns every record whose business timestamp strictly exceeds
// since, in insertion order, plus the current total record count. A zero
// since returns the full set.
func (r *Relay) Pull(since int64) ([]domain.SyncRecord, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.SyncRecord, 0, len(r.order))
	for _, id := range r.order {
		rec, ok := r.records[id]
		if !ok {
			continue
		}
		if since > 0 && rec.BusinessTime() <= since {
			continue
		}
		out = append(out, rec.CloneRecord())
	}
	return out, len(r.records)
}

// Get returns one record by id.
func (r *Relay) Get(id string) (domain.SyncRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.SyncRecord{}, false
	}
	return rec.CloneRecord(), true
}

// Delete removes a record, persists, and emits a deletion notification.
// It reports false when the id is absent.
func (r *Relay) Delete(id, user string) bool {
	if user == "" {
		user = "anonymous"
	}

	r.mu.Lock()
	if _, ok := r.records[id]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.records, id)
	for n, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:n], r.order[n+1:]...)
			break
		}
	}
	r.persistLocked()
	r.mu.Unlock()

	if r.notifier != nil {
		r.notifier.Notify(notify.EventRecordDeleted, notify.DeletedData{ID: id, User: user})
	}
	return true
}

// Count returns the number of authoritative records.
func (r *Relay) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *Relay) stamp(in domain.Issue, source, user string) domain.SyncRecord {
	return domain.SyncRecord{
		Issue:      in.Clone(),
		SyncedAt:   r.Now(),
		SyncedBy:   user,
		SyncedFrom: source,
	}
}
