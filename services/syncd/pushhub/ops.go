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
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/AleutianAI/beadsync/services/syncd/domain"
	"github.com/AleutianAI/beadsync/services/syncd/notify"
	"github.com/AleutianAI/beadsync/services/syncd/store"
)

func (h *Hub) readLoop(ctx context.Context, sess *session) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			sess.close()
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			sess.enqueueJSON(errReply(req.ID, CodeBadRequest, "malformed request"))
			continue
		}
		reply := h.handleRequest(ctx, sess, req)
		sess.enqueueJSON(reply)
	}
}

// handleRequest dispatches one RPC. Every path produces exactly one reply;
// a failed operation never tears down the connection.
func (h *Hub) handleRequest(ctx context.Context, sess *session, req Request) Reply {
	switch req.Type {
	case "subscribe":
		return h.opSubscribe(sess, req)
	case "unsubscribe":
		return h.opUnsubscribe(sess, req)
	case "list-issues":
		return h.opListIssues(ctx, req)
	case "create-issue":
		return h.opCreateIssue(ctx, req)
	case "update-status":
		return h.opUpdateStatus(ctx, req)
	case "add-comment":
		return h.opAddComment(ctx, req)
	case "get-comments":
		return h.opGetComments(ctx, req)
	case "delete-issue":
		return h.opDeleteIssue(ctx, req)
	default:
		return errReply(req.ID, CodeBadRequest, fmt.Sprintf("unknown request type %q", req.Type))
	}
}

type keysPayload struct {
	Keys []string `json:"keys"`
}

func (h *Hub) opSubscribe(sess *session, req Request) Reply {
	var p keysPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil || len(p.Keys) == 0 {
		return errReply(req.ID, CodeBadRequest, "keys required")
	}
	sess.subscribe(p.Keys)
	// A fresh subscriber needs a snapshot; the next pass covers it.
	if h.refresher != nil {
		h.refresher.ScheduleRefresh()
	}
	return okReply(req.ID, map[string]any{"subscribed": p.Keys})
}

func (h *Hub) opUnsubscribe(sess *session, req Request) Reply {
	var p keysPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil || len(p.Keys) == 0 {
		return errReply(req.ID, CodeBadRequest, "keys required")
	}
	sess.unsubscribe(p.Keys)
	return okReply(req.ID, map[string]any{"unsubscribed": p.Keys})
}

func (h *Hub) opListIssues(ctx context.Context, req Request) Reply {
	var f store.Filter
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &f); err != nil {
			return errReply(req.ID, CodeBadRequest, "malformed filter")
		}
	}
	issues, err := h.store.List(ctx, f)
	if err != nil {
		return errReply(req.ID, CodeStoreError, err.Error())
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	return okReply(req.ID, issues)
}

func (h *Hub) opCreateIssue(ctx context.Context, req Request) Reply {
	var is domain.Issue
	if err := json.Unmarshal(req.Payload, &is); err != nil {
		return errReply(req.ID, CodeBadRequest, "malformed issue")
	}
	if is.Title == "" {
		return errReply(req.ID, CodeBadRequest, "title required")
	}
	if is.ID == "" {
		is.ID = "bd-" + uuid.NewString()
	}
	if is.Status == "" {
		is.Status = domain.StatusOpen
	}
	if !domain.ValidStatus(is.Status) {
		return errReply(req.ID, CodeBadRequest, fmt.Sprintf("invalid status %q", is.Status))
	}
	if err := h.store.Create(ctx, is); err != nil {
		if errors.Is(err, store.ErrExists) {
			return errReply(req.ID, CodeBadRequest, err.Error())
		}
		return errReply(req.ID, CodeStoreError, err.Error())
	}
	h.notifier.Notify(notify.EventRecordsChanged, nil)
	return okReply(req.ID, map[string]any{"id": is.ID, "created": true})
}

func (h *Hub) opUpdateStatus(ctx context.Context, req Request) Reply {
	var p struct {
		ID     string        `json:"id"`
		Status domain.Status `json:"status"`
	}
	if err := json.Unmarshal(req.Payload, &p); err != nil || p.ID == "" {
		return errReply(req.ID, CodeBadRequest, "id required")
	}
	if !domain.ValidStatus(p.Status) {
		return errReply(req.ID, CodeBadRequest, fmt.Sprintf("invalid status %q", p.Status))
	}
	if err := h.store.UpdateStatus(ctx, p.ID, p.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errReply(req.ID, CodeNotFound, err.Error())
		}
		return errReply(req.ID, CodeStoreError, err.Error())
	}
	h.notifier.Notify(notify.EventRecordsChanged, nil)
	return okReply(req.ID, map[string]any{"id": p.ID, "status": p.Status})
}

func (h *Hub) opAddComment(ctx context.Context, req Request) Reply {
	var p struct {
		ID     string `json:"id"`
		Text   string `json:"text"`
		Author string `json:"author"`
	}
	if err := json.Unmarshal(req.Payload, &p); err != nil || p.ID == "" {
		return errReply(req.ID, CodeBadRequest, "id required")
	}
	if p.Text == "" {
		return errReply(req.ID, CodeBadRequest, "text required")
	}
	if p.Author == "" {
		p.Author = h.userName
	}
	if err := h.store.AddComment(ctx, p.ID, domain.Comment{Author: p.Author, Text: p.Text}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errReply(req.ID, CodeNotFound, err.Error())
		}
		return errReply(req.ID, CodeStoreError, err.Error())
	}
	h.notifier.Notify(notify.EventRecordsChanged, nil)

	is, err := h.store.Get(ctx, p.ID)
	if err != nil {
		return errReply(req.ID, CodeStoreError, err.Error())
	}
	return okReply(req.ID, commentsOrEmpty(is))
}

func (h *Hub) opGetComments(ctx context.Context, req Request) Reply {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Payload, &p); err != nil || p.ID == "" {
		return errReply(req.ID, CodeBadRequest, "id required")
	}
	is, err := h.store.Get(ctx, p.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errReply(req.ID, CodeNotFound, err.Error())
		}
		return errReply(req.ID, CodeStoreError, err.Error())
	}
	return okReply(req.ID, commentsOrEmpty(is))
}

func (h *Hub) opDeleteIssue(ctx context.Context, req Request) Reply {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Payload, &p); err != nil || p.ID == "" {
		return errReply(req.ID, CodeBadRequest, "id required")
	}
	if err := h.store.Delete(ctx, p.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errReply(req.ID, CodeNotFound, err.Error())
		}
		return errReply(req.ID, CodeStoreError, err.Error())
	}
	h.notifier.Notify(notify.EventRecordDeleted, notify.DeletedData{ID: p.ID, User: h.userName})
	return okReply(req.ID, map[string]any{"deleted": true, "id": p.ID})
}

func commentsOrEmpty(is domain.Issue) []domain.Comment {
	if is.Comments == nil {
		return []domain.Comment{}
	}
	return is.Comments
}
