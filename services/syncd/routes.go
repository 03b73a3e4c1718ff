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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/beadsync/services/syncd/pushhub"
)

// RegisterRoutes registers every daemon route with the router.
//
// Endpoints:
//
//	GET    /healthz                  - liveness check (unauthenticated)
//	GET    /metrics                  - Prometheus metrics (unauthenticated)
//	GET    /ws                       - push channel upgrade
//	GET    /api/sync/status          - record count + timestamp
//	GET    /api/sync/pull            - records changed since a cutoff
//	POST   /api/sync/push            - merge a batch of records
//	GET    /api/sync/record/:id      - one record
//	DELETE /api/sync/record/:id      - remove one record
//	POST   /api/register-workspace   - add a workspace to the registry
//	GET    /api/workspaces           - current workspace + registry
func RegisterRoutes(r *gin.Engine, h *Handlers, hub *pushhub.Hub, token string) {
	r.GET("/healthz", h.HandleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := TokenAuth(token)
	r.GET("/ws", auth, hub.HandleWS())

	api := r.Group("/api", auth)
	{
		sync := api.Group("/sync")
		{
			sync.GET("/status", h.HandleStatus)
			sync.GET("/pull", h.HandlePull)
			sync.POST("/push", h.HandlePush)
			sync.GET("/record/:id", h.HandleGetRecord)
			sync.DELETE("/record/:id", h.HandleDeleteRecord)
		}
		api.POST("/register-workspace", h.HandleRegisterWorkspace)
		api.GET("/workspaces", h.HandleWorkspaces)
	}
}
