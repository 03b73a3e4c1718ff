// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mergeOutcomes counts per-record merge results by outcome
	// (created, updated, conflict).
	mergeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beadsync_relay_merge_outcomes_total",
		Help: "Per-record merge outcomes processed by the sync relay.",
	}, []string{"outcome"})

	// persistFailures counts failed sync store writes.
	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beadsync_relay_persist_failures_total",
		Help: "Failed synchronous writes of the authoritative sync store.",
	})
)
