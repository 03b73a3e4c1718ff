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
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// session is one websocket connection together with its subscribed keys.
//
// All writes go through the send channel so the write pump is the only
// goroutine touching the connection's data frames; pings use WriteControl,
// which gorilla allows concurrently.
type session struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	log  *slog.Logger

	mu    sync.Mutex
	keys  map[string]struct{}
	alive bool

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id string, conn *websocket.Conn, log *slog.Logger) *session {
	s := &session{
		id:    id,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		log:   log.With("session", id),
		keys:  make(map[string]struct{}),
		alive: true,
		done:  make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		s.mu.Lock()
		s.alive = true
		s.mu.Unlock()
		return nil
	})
	return s
}

func (s *session) subscribe(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if k != "" {
			s.keys[k] = struct{}{}
		}
	}
}

func (s *session) unsubscribe(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.keys, k)
	}
}

func (s *session) subscribedTo(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

func (s *session) keySet() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	return out
}

// enqueue hands a frame to the write pump. A full buffer means the client
// stopped draining; the session gets closed rather than blocking the hub.
func (s *session) enqueue(frame []byte) bool {
	select {
	case s.send <- frame:
		return true
	case <-s.done:
		return false
	default:
		s.log.Warn("send buffer full, dropping slow session")
		s.close()
		return false
	}
}

func (s *session) enqueueJSON(v any) bool {
	frame, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to marshal frame", "error", err)
		return false
	}
	return s.enqueue(frame)
}

func (s *session) writePump() {
	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Info("write failed, closing session", "error", err)
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// ping marks the session as awaiting a pong and sends the ping frame. The
// previous pong must have arrived by the next heartbeat or the session is
// considered dead.
func (s *session) ping() bool {
	s.mu.Lock()
	wasAlive := s.alive
	s.alive = false
	s.mu.Unlock()

	if !wasAlive {
		return false
	}
	deadline := time.Now().Add(writeTimeout)
	if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		return false
	}
	return true
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
