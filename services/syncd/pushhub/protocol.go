// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pushhub is the server side of the push channel: a websocket hub
// that carries request/reply RPC traffic and one-way snapshot and event
// pushes toward connected UI clients.
package pushhub

import (
	"encoding/json"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

// Error codes carried inside failed replies.
const (
	CodeBadRequest = "bad_request"
	CodeStoreError = "store_error"
	CodeNotFound   = "not_found"
)

// Push type tags. Snapshots reuse the envelope's own "snapshot" tag; events
// carry their notify event type.
const TypeSnapshot = "snapshot"

// Request is one client-initiated message. ID correlates the reply.
type Request struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply answers exactly one Request.
type Reply struct {
	ID      string     `json:"id"`
	OK      bool       `json:"ok"`
	Payload any        `json:"payload,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the structured error inside a failed Reply.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SnapshotPush is the wire form of a revisioned snapshot broadcast. The id
// field carries the subscription key, mirroring domain.SnapshotEnvelope.
type SnapshotPush struct {
	Type     string         `json:"type"`
	Key      string         `json:"id"`
	Revision int64          `json:"revision"`
	Issues   []domain.Issue `json:"issues"`
}

// EventPush is the wire form of a tagged change event broadcast.
type EventPush struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func marshalFrame(v any) ([]byte, error) {
	return json.Marshal(v)
}

func okReply(id string, payload any) Reply {
	return Reply{ID: id, OK: true, Payload: payload}
}

func errReply(id, code, message string) Reply {
	return Reply{ID: id, OK: false, Error: &ErrorBody{Code: code, Message: message}}
}
