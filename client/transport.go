// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package client is the observer side of the push channel: a websocket
// connection carrying request/reply RPCs plus unsolicited snapshot and
// event pushes.
//
// The transport gives no ordering guarantee between pushes; snapshot
// freshness is decided entirely by the subscription package's revision
// comparison, never by arrival order.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/beadsync/client/subscription"
	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

// DefaultRequestTimeout bounds how long a request waits for its reply. A
// reply arriving after the timeout is discarded; completion is idempotent
// either way.
const DefaultRequestTimeout = 30 * time.Second

// ErrClosed is returned for requests made on a closed client.
var ErrClosed = errors.New("client is closed")

// RPCError is a structured failure reply from the server.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Event is an unsolicited tagged push, such as a change notification.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Options configures Dial.
type Options struct {
	// Token authenticates the connection when the server requires one.
	Token string

	// OnEvent receives tagged event pushes. Called from the read loop, so
	// it must not block.
	OnEvent func(Event)

	// RequestTimeout overrides DefaultRequestTimeout when positive.
	RequestTimeout time.Duration

	Logger *slog.Logger
}

// Client is one live push channel connection.
type Client struct {
	conn     *websocket.Conn
	registry *subscription.Registry
	onEvent  func(Event)
	timeout  time.Duration
	log      *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pendingCall
	closed  bool

	closeOnce sync.Once
	done      chan struct{}
}

// pendingCall completes exactly once: by reply, timeout, cancellation, or
// connection teardown, whichever wins.
type pendingCall struct {
	once sync.Once
	ch   chan wireReply
}

func (p *pendingCall) complete(r wireReply) {
	p.once.Do(func() { p.ch <- r })
}

type wireReply struct {
	payload json.RawMessage
	err     error
}

// wireFrame is the shape-sniffing decode of any incoming frame. Replies
// carry "ok", snapshots carry type "snapshot", everything else with a type
// is an event.
type wireFrame struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	OK        *bool           `json:"ok"`
	Payload   json.RawMessage `json:"payload"`
	Error     *RPCError       `json:"error"`
	Revision  int64           `json:"revision"`
	Issues    []domain.Issue  `json:"issues"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Dial connects to a sync daemon's /ws endpoint.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial the push channel: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	c := &Client{
		conn:     conn,
		registry: subscription.NewRegistry(),
		onEvent:  opts.OnEvent,
		timeout:  timeout,
		log:      log,
		pending:  make(map[string]*pendingCall),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Stores returns the registry of per-key subscription stores fed by
// incoming snapshots.
func (c *Client) Stores() *subscription.Registry {
	return c.registry
}

// Request sends one RPC and waits for its reply payload. A failed reply
// surfaces as an *RPCError.
func (c *Client) Request(ctx context.Context, reqType string, payload any) (json.RawMessage, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode the request payload: %w", err)
		}
		raw = data
	}

	id := uuid.NewString()
	call := &pendingCall{ch: make(chan wireReply, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = call
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	frame, err := json.Marshal(struct {
		ID      string          `json:"id"`
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{ID: id, Type: reqType, Payload: raw})
	if err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send the request: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-call.ch:
		return r.payload, r.err
	case <-timer.C:
		return nil, fmt.Errorf("request %q timed out after %s", reqType, c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Subscribe registers interest in subscription keys. Snapshots for them
// start flowing into Stores().
func (c *Client) Subscribe(ctx context.Context, keys ...string) error {
	_, err := c.Request(ctx, "subscribe", map[string][]string{"keys": keys})
	return err
}

// Unsubscribe drops interest in subscription keys.
func (c *Client) Unsubscribe(ctx context.Context, keys ...string) error {
	_, err := c.Request(ctx, "unsubscribe", map[string][]string{"keys": keys})
	return err
}

// Close tears the connection down and fails every in-flight request.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		calls := make([]*pendingCall, 0, len(c.pending))
		for _, call := range c.pending {
			calls = append(calls, call)
		}
		c.pending = make(map[string]*pendingCall)
		c.mu.Unlock()

		for _, call := range calls {
			call.complete(wireReply{err: ErrClosed})
		}
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn("discarding malformed frame", "error", err)
			continue
		}

		switch {
		case frame.Type == "snapshot":
			c.registry.Dispatch(domain.SnapshotEnvelope{
				Key:      frame.ID,
				Revision: frame.Revision,
				Issues:   frame.Issues,
			})
		case frame.OK != nil:
			c.dispatchReply(frame)
		case frame.Type != "":
			if c.onEvent != nil {
				c.onEvent(Event{Type: frame.Type, Data: frame.Data, Timestamp: frame.Timestamp})
			}
		default:
			c.log.Warn("discarding unrecognized frame")
		}
	}
}

func (c *Client) dispatchReply(frame wireFrame) {
	c.mu.Lock()
	call, ok := c.pending[frame.ID]
	c.mu.Unlock()
	if !ok {
		// Late reply after the caller stopped waiting.
		return
	}

	if *frame.OK {
		call.complete(wireReply{payload: frame.Payload})
		return
	}
	rpcErr := frame.Error
	if rpcErr == nil {
		rpcErr = &RPCError{Code: "unknown", Message: "unspecified failure"}
	}
	call.complete(wireReply{err: rpcErr})
}
