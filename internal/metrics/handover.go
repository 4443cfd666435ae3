// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HandoverRuns tracks sovereign-resume handover outcomes.
	HandoverRuns = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handover",
			Name:      "runs_total",
			Help:      "Total number of handover engine runs by outcome",
		},
		[]string{"outcome"}, // pivoted, handover_pending, handover_complete, handover_no_lock
	)

	// HandoverDuration tracks how long a handover run took.
	HandoverDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handover",
			Name:      "duration_seconds",
			Help:      "Handover engine run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"outcome"},
	)
)
