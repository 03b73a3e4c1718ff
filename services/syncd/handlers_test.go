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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/beadsync/services/syncd/config"
	"github.com/AleutianAI/beadsync/services/syncd/domain"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, Token: token},
		Store:  config.StoreConfig{InMemory: true},
		Relay: config.RelayConfig{
			StorePath:    filepath.Join(dir, "sync-store.json"),
			RegistryPath: filepath.Join(dir, "workspaces.json"),
		},
		Refresh: config.RefreshConfig{DebounceMS: 10, HeartbeatSeconds: 30},
	}

	srv, err := NewServer(cfg, ServerOptions{DisableWatcher: true, UserName: "tester"})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, "")

	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ok"])
}

func TestPushPullRoundTrip(t *testing.T) {
	srv := newTestServer(t, "")

	w := doJSON(t, srv, http.MethodPost, "/api/sync/push", PushRequest{
		Source: "laptop",
		Records: []domain.Issue{
			{ID: "UI-1", Title: "first", Status: domain.StatusOpen, UpdatedAt: 100},
			{ID: "UI-2", Title: "second", Status: domain.StatusOpen, UpdatedAt: 300},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(2), body["created"])
	assert.Equal(t, float64(0), body["updated"])
	assert.Equal(t, float64(0), body["conflicts"])

	w = doJSON(t, srv, http.MethodGet, "/api/sync/pull", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	records := body["records"].([]any)
	assert.Len(t, records, 2)
	assert.Equal(t, float64(2), body["total"])

	// since is a strictly-greater cutoff on the business timestamp.
	w = doJSON(t, srv, http.MethodGet, "/api/sync/pull?since=100", nil)
	body = decode(t, w)
	records = body["records"].([]any)
	require.Len(t, records, 1)
	rec := records[0].(map[string]any)
	assert.Equal(t, "UI-2", rec["id"])
	assert.Equal(t, float64(2), body["total"], "total counts the full set, not the filtered one")
}

func TestPushFeedsRecordStore(t *testing.T) {
	srv := newTestServer(t, "")

	w := doJSON(t, srv, http.MethodPost, "/api/sync/push", PushRequest{
		Source: "laptop",
		Records: []domain.Issue{
			{ID: "UI-1", Title: "merged", Status: domain.StatusOpen, UpdatedAt: 100},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The merge winner lands in the record store, so the next recompute
	// pass includes it in subscription snapshots.
	is, err := srv.store.Get(context.Background(), "UI-1")
	require.NoError(t, err)
	assert.Equal(t, "merged", is.Title)
	assert.Equal(t, int64(100), is.UpdatedAt, "stamped timestamps are preserved")

	// A conflict loser never reaches the record store.
	w = doJSON(t, srv, http.MethodPost, "/api/sync/push", PushRequest{
		Source: "phone",
		Records: []domain.Issue{
			{ID: "UI-1", Title: "stale", Status: domain.StatusOpen, UpdatedAt: 90},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["conflicts"])

	is, err = srv.store.Get(context.Background(), "UI-1")
	require.NoError(t, err)
	assert.Equal(t, "merged", is.Title)
}

func TestSubmitterIdentityFromHeader(t *testing.T) {
	srv := newTestServer(t, "")

	push := func(id, user string) {
		body, err := json.Marshal(PushRequest{
			Source:  "laptop",
			Records: []domain.Issue{{ID: id, Status: domain.StatusOpen, UpdatedAt: 100}},
		})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/sync/push", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if user != "" {
			req.Header.Set("X-Sync-User", user)
		}
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	push("UI-1", "alex")
	push("UI-2", "")

	w := doJSON(t, srv, http.MethodGet, "/api/sync/record/UI-1", nil)
	rec := decode(t, w)["record"].(map[string]any)
	assert.Equal(t, "alex", rec["synced_by"])

	w = doJSON(t, srv, http.MethodGet, "/api/sync/record/UI-2", nil)
	rec = decode(t, w)["record"].(map[string]any)
	assert.Equal(t, "anonymous", rec["synced_by"])
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := newTestServer(t, "")

	srv.Close()
	srv.Close() // a second call must be a no-op, not a double store close
}

func TestPushConflictIsSoft(t *testing.T) {
	srv := newTestServer(t, "")

	doJSON(t, srv, http.MethodPost, "/api/sync/push", PushRequest{
		Records: []domain.Issue{{ID: "UI-1", Title: "newer", UpdatedAt: 100}},
	})

	w := doJSON(t, srv, http.MethodPost, "/api/sync/push", PushRequest{
		Records: []domain.Issue{{ID: "UI-1", Title: "older", UpdatedAt: 90}},
	})
	require.Equal(t, http.StatusOK, w.Code, "a losing record is not an HTTP failure")

	body := decode(t, w)
	assert.Equal(t, float64(1), body["conflicts"])
	details := body["conflictDetails"].([]any)
	require.Len(t, details, 1)
	detail := details[0].(map[string]any)
	assert.Equal(t, "UI-1", detail["id"])
	assert.Equal(t, float64(100), detail["existing_time"])
	assert.Equal(t, float64(90), detail["incoming_time"])
	assert.Equal(t, "kept_existing", detail["resolution"])
}

func TestPushRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t, "")

	w := doJSON(t, srv, http.MethodPost, "/api/sync/push", map[string]string{"source": "laptop"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeBadRequest, decode(t, w)["error"])
}

func TestRecordGetAndDelete(t *testing.T) {
	srv := newTestServer(t, "")

	doJSON(t, srv, http.MethodPost, "/api/sync/push", PushRequest{
		Records: []domain.Issue{{ID: "UI-1", Title: "t", UpdatedAt: 10}},
	})

	w := doJSON(t, srv, http.MethodGet, "/api/sync/record/UI-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode(t, w)["record"].(map[string]any)
	assert.Equal(t, "UI-1", rec["id"])
	assert.NotZero(t, rec["synced_at"])

	w = doJSON(t, srv, http.MethodDelete, "/api/sync/record/UI-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UI-1", decode(t, w)["deleted"])

	w = doJSON(t, srv, http.MethodGet, "/api/sync/record/UI-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, srv, http.MethodDelete, "/api/sync/record/UI-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusReportsCount(t *testing.T) {
	srv := newTestServer(t, "")

	w := doJSON(t, srv, http.MethodGet, "/api/sync/status", nil)
	body := decode(t, w)
	assert.Equal(t, float64(0), body["records"])
	assert.NotZero(t, body["timestamp"])

	doJSON(t, srv, http.MethodPost, "/api/sync/push", PushRequest{
		Records: []domain.Issue{{ID: "UI-1", Title: "t", UpdatedAt: 10}},
	})

	w = doJSON(t, srv, http.MethodGet, "/api/sync/status", nil)
	assert.Equal(t, float64(1), decode(t, w)["records"])
}

func TestRegisterWorkspace(t *testing.T) {
	srv := newTestServer(t, "")

	w := doJSON(t, srv, http.MethodPost, "/api/register-workspace", RegisterWorkspaceRequest{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/register-workspace", RegisterWorkspaceRequest{Path: "/work/acme"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/register-workspace", RegisterWorkspaceRequest{
		Path:     "/work/acme",
		Database: "/work/acme/.beads/issues.db",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/work/acme", decode(t, w)["registered"])

	w = doJSON(t, srv, http.MethodGet, "/api/workspaces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode(t, w)["workspaces"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "/work/acme", entries[0].(map[string]any)["root_dir"])
}

func TestTokenAuth(t *testing.T) {
	srv := newTestServer(t, "s3cret")

	// Liveness and metrics stay open.
	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/sync/status", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrCodeUnauthorized, decode(t, w)["error"])

	req := httptest.NewRequest(http.MethodGet, "/api/sync/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/sync/status", nil)
	req.Header.Set("X-Sync-Token", "s3cret")
	rec = httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/sync/status?token=s3cret", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/sync/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
