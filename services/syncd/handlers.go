// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syncd

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
	"github.com/AleutianAI/beadsync/services/syncd/relay"
	"github.com/AleutianAI/beadsync/services/syncd/workspace"
)

// Handlers contains the REST handlers for the sync daemon.
type Handlers struct {
	relay    *relay.Relay
	registry *workspace.Registry
	state    *workspace.State
	log      *slog.Logger
}

// NewHandlers creates handlers over the given relay and workspace registry.
func NewHandlers(r *relay.Relay, reg *workspace.Registry, st *workspace.State, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{relay: r, registry: reg, state: st, log: log}
}

// HandleHealthz handles GET /healthz.
func (h *Handlers) HandleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// HandleStatus handles GET /api/sync/status.
func (h *Handlers) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		OK:        true,
		Records:   h.relay.Count(),
		Timestamp: domain.NowMillis(),
	})
}

// HandlePull handles GET /api/sync/pull?since=N.
//
// A missing or unparseable since returns the full set; the filter is
// strictly-greater on the record's business timestamp.
func (h *Handlers) HandlePull(c *gin.Context) {
	var since int64
	if raw := c.Query("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest,
				errorResponse(ErrCodeBadRequest, "since must be an integer"))
			return
		}
		since = parsed
	}

	records, total := h.relay.Pull(since)
	h.log.Debug("pull served", "returned", len(records), "since", since)

	c.JSON(http.StatusOK, PullResponse{
		OK:        true,
		Records:   records,
		Timestamp: domain.NowMillis(),
		Total:     total,
	})
}

// HandlePush handles POST /api/sync/push.
//
// Conflicts are a soft outcome: the response is 200 with the losing records
// itemized in conflictDetails, never an HTTP failure.
func (h *Handlers) HandlePush(c *gin.Context) {
	var req PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest,
			errorResponse(ErrCodeBadRequest, "records must be an array"))
		return
	}

	source := req.Source
	if source == "" {
		source = "unknown"
	}
	user := c.GetString("user")
	if user == "" {
		user = "anonymous"
	}

	res := h.relay.Push(c.Request.Context(), req.Records, source, user)

	details := res.Conflicts
	if details == nil {
		details = []domain.ConflictReport{}
	}
	c.JSON(http.StatusOK, PushResponse{
		OK:              true,
		Created:         len(res.Created),
		Updated:         len(res.Updated),
		Conflicts:       len(res.Conflicts),
		ConflictDetails: details,
		Timestamp:       domain.NowMillis(),
	})
}

// HandleGetRecord handles GET /api/sync/record/:id.
func (h *Handlers) HandleGetRecord(c *gin.Context) {
	id := c.Param("id")
	rec, ok := h.relay.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse(ErrCodeNotFound, "record not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "record": rec})
}

// HandleDeleteRecord handles DELETE /api/sync/record/:id.
func (h *Handlers) HandleDeleteRecord(c *gin.Context) {
	id := c.Param("id")
	user := c.GetString("user")

	if !h.relay.Delete(id, user) {
		c.JSON(http.StatusNotFound, errorResponse(ErrCodeNotFound, "record not found"))
		return
	}
	h.log.Info("record deleted", "id", id)
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": id})
}

// HandleRegisterWorkspace handles POST /api/register-workspace.
func (h *Handlers) HandleRegisterWorkspace(c *gin.Context) {
	var req RegisterWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		c.JSON(http.StatusBadRequest,
			errorResponse(ErrCodeBadRequest, "missing or invalid path"))
		return
	}
	if req.Database == "" {
		c.JSON(http.StatusBadRequest,
			errorResponse(ErrCodeBadRequest, "missing or invalid database"))
		return
	}

	if err := h.registry.Register(workspace.Workspace{RootDir: req.Path, DBPath: req.Database}); err != nil {
		h.log.Error("failed to register workspace", "path", req.Path, "error", err)
		c.JSON(http.StatusInternalServerError,
			errorResponse(ErrCodeStoreError, "failed to persist workspace registry"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "registered": req.Path})
}

// HandleWorkspaces handles GET /api/workspaces.
func (h *Handlers) HandleWorkspaces(c *gin.Context) {
	current, _ := h.state.Current()
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"current":    current,
		"workspaces": h.registry.Entries(),
	})
}
