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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beadsync_refresh_passes_total",
		Help: "Recomputation passes executed by the refresh scheduler.",
	})

	keyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beadsync_refresh_key_failures_total",
		Help: "Subscription keys skipped because recomputation failed.",
	})

	snapshotsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beadsync_refresh_snapshots_total",
		Help: "Snapshot envelopes handed to the transport for broadcast.",
	})
)
