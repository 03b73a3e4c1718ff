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
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenAuth guards routes with a shared token. An empty expected token
// disables the check entirely (development mode). The token is accepted as
// a Bearer credential, an X-Sync-Token header, or a ?token= query parameter
// for simple curl usage.
//
// The advisory X-Sync-User header names the submitter; handlers stamp it
// on merges and deletions. Absent, the submitter is "anonymous".
func TokenAuth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if u := c.GetHeader("X-Sync-User"); u != "" {
			c.Set("user", u)
		}

		if expected == "" {
			c.Next()
			return
		}

		if tokenMatches(bearerToken(c), expected) ||
			tokenMatches(c.GetHeader("X-Sync-Token"), expected) ||
			tokenMatches(c.Query("token"), expected) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized,
			errorResponse(ErrCodeUnauthorized, "valid sync token required"))
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func tokenMatches(got, expected string) bool {
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
