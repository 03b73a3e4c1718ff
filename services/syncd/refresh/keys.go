// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refresh

import (
	"strings"

	"github.com/AleutianAI/beadsync/services/syncd/store"
)

// Subscription keys name view scopes. The fixed tab keys mirror the UI's
// panes; the prefixed forms let an observer scope to one facet value.
//
//	tab:issues          every issue
//	tab:epics           issues typed "epic"
//	tab:ready           open, unblocked issues
//	status:<status>     one status (or "ready")
//	type:<issue type>   one type tag
//	project:<path>      one project
const (
	KeyAllIssues = "tab:issues"
	KeyEpics     = "tab:epics"
	KeyReady     = "tab:ready"
)

// ResolveKey maps a subscription key to its record store filter. The second
// return is false for keys the server does not understand.
func ResolveKey(key string) (store.Filter, bool) {
	switch key {
	case KeyAllIssues:
		return store.Filter{}, true
	case KeyEpics:
		return store.Filter{Types: []string{"epic"}}, true
	case KeyReady:
		return store.Filter{Statuses: []string{"ready"}}, true
	}

	if scope, val, ok := strings.Cut(key, ":"); ok && val != "" {
		switch scope {
		case "status":
			return store.Filter{Statuses: []string{val}}, true
		case "type":
			return store.Filter{Types: []string{val}}, true
		case "project":
			return store.Filter{Projects: []string{val}}, true
		}
	}
	return store.Filter{}, false
}
