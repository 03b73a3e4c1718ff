// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refresh turns bursts of change signals into revisioned snapshot
// broadcasts.
//
// The scheduler is a four-state machine:
//
//	idle ──signal──▶ scheduled ──quiet period──▶ running ──▶ idle
//	                 ▲    │(signal resets timer)     │
//	                 │    ▼                          │signal
//	                 └── running-with-pending ◀──────┘
//
// Signals during the debounce window coalesce into one pass. Signals during
// an in-flight pass set exactly one pending follow-up, never a queue; the
// follow-up runs immediately after the pass completes. Per-key revision
// counters advance on every recomputation, even for identical content.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
	"github.com/AleutianAI/beadsync/services/syncd/store"
)

var tracer = otel.Tracer("beadsync/refresh")

// Defaults mirror the protocol's tuning: coalesce database change bursts
// into one refresh run, ping connections every 30s.
const (
	DefaultDebounce    = 75 * time.Millisecond
	DefaultHeartbeat   = 30 * time.Second
	DefaultPassTimeout = 10 * time.Second
)

type schedState int

const (
	stateIdle schedState = iota
	stateScheduled
	stateRunning
	stateRunningPending
)

// Broadcaster is the transport side the scheduler feeds. The hub implements
// it.
type Broadcaster interface {
	// ActiveKeys returns the subscription keys with at least one observer.
	ActiveKeys() []string

	// BroadcastSnapshot delivers one revisioned envelope to every observer
	// of its key.
	BroadcastSnapshot(env domain.SnapshotEnvelope)

	// Heartbeat pings all connections and prunes the dead ones.
	Heartbeat()
}

// Options tunes a Scheduler.
type Options struct {
	Debounce    time.Duration
	Heartbeat   time.Duration
	PassTimeout time.Duration
	Logger      *slog.Logger
}

// Scheduler coalesces change signals and recomputes per-key snapshots.
type Scheduler struct {
	store       store.Store
	sink        Broadcaster
	debounce    time.Duration
	heartbeat   time.Duration
	passTimeout time.Duration
	log         *slog.Logger

	mu        sync.Mutex
	state     schedState
	timer     *time.Timer
	revisions map[string]int64
}

// NewScheduler wires a scheduler to the given record store and broadcaster.
func NewScheduler(st store.Store, sink Broadcaster, opts Options) *Scheduler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.PassTimeout <= 0 {
		opts.PassTimeout = DefaultPassTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		store:       st,
		sink:        sink,
		debounce:    opts.Debounce,
		heartbeat:   opts.Heartbeat,
		passTimeout: opts.PassTimeout,
		log:         opts.Logger,
		revisions:   make(map[string]int64),
	}
}

// ScheduleRefresh requests a recomputation pass. Callable any number of
// times from any goroutine; bursts inside the debounce window coalesce into
// one pass, and at most one follow-up pass is pended while a pass is in
// flight.
func (s *Scheduler) ScheduleRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateIdle:
		s.state = stateScheduled
		s.timer = time.AfterFunc(s.debounce, s.fire)
	case stateScheduled:
		// Trailing edge: every signal restarts the quiet period.
		s.timer.Reset(s.debounce)
	case stateRunning:
		s.state = stateRunningPending
	case stateRunningPending:
		// Already pended; never grow a queue.
	}
}

// fire runs on the timer goroutine when the quiet period elapses.
//
// An expired timer can be re-armed by a Reset that raced the expiry, so a
// second fire may arrive while a pass is still in flight. Those stale
// expiries coalesce into the pending slot; only a fire that finds the
// machine in scheduled state may start a pass.
func (s *Scheduler) fire() {
	s.mu.Lock()
	switch s.state {
	case stateRunning, stateRunningPending:
		s.state = stateRunningPending
		s.mu.Unlock()
		return
	case stateIdle:
		// Stopped between the expiry and this lock.
		s.mu.Unlock()
		return
	}
	s.state = stateRunning
	s.mu.Unlock()

	for {
		s.runPass()

		s.mu.Lock()
		if s.state == stateRunningPending {
			// Exactly one follow-up, immediately.
			s.state = stateRunning
			s.mu.Unlock()
			continue
		}
		s.state = stateIdle
		s.mu.Unlock()
		return
	}
}

// runPass recomputes and broadcasts every active key. A failure on one key
// is logged and skipped; it never prevents the remaining keys from being
// recomputed in the same pass.
func (s *Scheduler) runPass() {
	ctx, cancel := context.WithTimeout(context.Background(), s.passTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "refresh.pass")
	defer span.End()

	refreshPasses.Inc()

	keys := s.sink.ActiveKeys()
	span.SetAttributes(attribute.Int("keys", len(keys)))

	for _, key := range keys {
		filter, ok := ResolveKey(key)
		if !ok {
			s.log.Warn("unknown subscription key, skipping", "key", key)
			keyFailures.Inc()
			continue
		}

		issues, err := s.store.List(ctx, filter)
		if err != nil {
			s.log.Error("recompute failed for key", "key", key, "error", err)
			keyFailures.Inc()
			continue
		}

		env := domain.SnapshotEnvelope{
			Key:      key,
			Revision: s.nextRevision(key),
			Issues:   issues,
		}
		s.sink.BroadcastSnapshot(env)
		snapshotsBroadcast.Inc()
		s.log.Debug("snapshot broadcast", "key", key, "revision", env.Revision, "issues", len(issues))
	}
}

// nextRevision advances the per-key logical clock. Strictly increasing;
// advanced on every recomputation regardless of content.
func (s *Scheduler) nextRevision(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions[key]++
	return s.revisions[key]
}

// RunHeartbeat drives the fixed-interval connection heartbeat until ctx is
// cancelled. Independent of the debounce logic.
func (s *Scheduler) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sink.Heartbeat()
		}
	}
}

// Stop cancels a pending debounce timer. In-flight passes complete on their
// own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.state == stateScheduled {
		s.state = stateIdle
	}
}
