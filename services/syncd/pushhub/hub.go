// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pushhub

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
	"github.com/AleutianAI/beadsync/services/syncd/notify"
	"github.com/AleutianAI/beadsync/services/syncd/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// Refresher requests a snapshot recomputation pass. Satisfied by the refresh
// scheduler.
type Refresher interface {
	ScheduleRefresh()
}

// Hub owns the set of live websocket sessions and fans snapshots and events
// out to them. It satisfies refresh.Broadcaster.
type Hub struct {
	store     store.Store
	notifier  *notify.Notifier
	log       *slog.Logger
	userName  string
	refresher Refresher

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// HubConfig carries the hub's collaborators.
type HubConfig struct {
	Store    store.Store
	Notifier *notify.Notifier
	Logger   *slog.Logger

	// UserName is stamped as the author on comments created without one.
	UserName string
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Hub{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		userName: cfg.UserName,
		sessions: make(map[*session]struct{}),
	}
}

// SetRefresher wires the scheduler in after construction. The hub and the
// scheduler reference each other, so one side has to be set late.
func (h *Hub) SetRefresher(r Refresher) {
	h.refresher = r
}

// HandleWS upgrades the request and services the connection until the client
// goes away.
func (h *Hub) HandleWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Error("websocket upgrade failed", "error", err)
			return
		}

		sess := newSession(uuid.New().String(), conn, h.log)
		h.register(sess)
		defer h.unregister(sess)

		go sess.writePump()
		h.log.Info("push client connected", "session", sess.id)

		h.readLoop(c.Request.Context(), sess)
		h.log.Info("push client disconnected", "session", sess.id)
	}
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	liveConnections.Set(float64(n))
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	n := len(h.sessions)
	h.mu.Unlock()
	liveConnections.Set(float64(n))
	s.close()
}

func (h *Hub) snapshot() []*session {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// ActiveKeys returns the union of every session's subscribed keys.
func (h *Hub) ActiveKeys() []string {
	seen := make(map[string]struct{})
	for _, s := range h.snapshot() {
		for _, k := range s.keySet() {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out
}

// BroadcastSnapshot delivers one envelope to every session subscribed to its
// key. The frame is marshaled once and shared.
func (h *Hub) BroadcastSnapshot(env domain.SnapshotEnvelope) {
	push := SnapshotPush{
		Type:     TypeSnapshot,
		Key:      env.Key,
		Revision: env.Revision,
		Issues:   env.Issues,
	}
	frame, err := marshalFrame(push)
	if err != nil {
		h.log.Error("failed to marshal snapshot push", "key", env.Key, "error", err)
		return
	}
	sent := 0
	for _, s := range h.snapshot() {
		if s.subscribedTo(env.Key) && s.enqueue(frame) {
			sent++
		}
	}
	snapshotsSent.Add(float64(sent))
}

// BroadcastEvent delivers a tagged event to every session regardless of
// subscriptions.
func (h *Hub) BroadcastEvent(ev notify.Event) {
	frame, err := marshalFrame(EventPush{Type: ev.Type, Data: ev.Data, Timestamp: ev.Timestamp})
	if err != nil {
		h.log.Error("failed to marshal event push", "type", ev.Type, "error", err)
		return
	}
	for _, s := range h.snapshot() {
		s.enqueue(frame)
	}
}

// Heartbeat pings every session and drops the ones whose previous ping went
// unanswered.
func (h *Hub) Heartbeat() {
	for _, s := range h.snapshot() {
		if !s.ping() {
			h.log.Info("pruning unresponsive session", "session", s.id)
			h.unregister(s)
		}
	}
}

// Close tears down every live session.
func (h *Hub) Close() {
	for _, s := range h.snapshot() {
		h.unregister(s)
	}
}
