// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syncd is the sync daemon: the REST surface, the push channel, and
// the wiring that binds the record store, the relay, and the refresh
// scheduler into one process.
package syncd

import (
	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

// Error codes used in REST error envelopes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeStoreError   = "store_error"
	ErrCodeUnauthorized = "unauthorized"
)

// ErrorResponse is the uniform REST error envelope.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func errorResponse(code, message string) ErrorResponse {
	return ErrorResponse{OK: false, Error: code, Message: message}
}

// PushRequest is the body of POST /api/sync/push.
type PushRequest struct {
	Records []domain.Issue `json:"records" binding:"required"`
	Source  string         `json:"source"`
}

// PushResponse reports the per-batch merge outcome. ConflictDetails is
// always present, empty when every record merged cleanly.
type PushResponse struct {
	OK              bool                    `json:"ok"`
	Created         int                     `json:"created"`
	Updated         int                     `json:"updated"`
	Conflicts       int                     `json:"conflicts"`
	ConflictDetails []domain.ConflictReport `json:"conflictDetails"`
	Timestamp       int64                   `json:"timestamp"`
}

// PullResponse carries records changed since the requested cutoff, plus the
// total authoritative count for client-side gap detection.
type PullResponse struct {
	OK        bool                `json:"ok"`
	Records   []domain.SyncRecord `json:"records"`
	Timestamp int64               `json:"timestamp"`
	Total     int                 `json:"total"`
}

// StatusResponse is the body of GET /api/sync/status.
type StatusResponse struct {
	OK        bool  `json:"ok"`
	Records   int   `json:"records"`
	Timestamp int64 `json:"timestamp"`
}

// RegisterWorkspaceRequest is the body of POST /api/register-workspace.
type RegisterWorkspaceRequest struct {
	Path     string `json:"path"`
	Database string `json:"database"`
}
