// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated tracks sessions reaching ACTIVE.
	SessionsCreated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Total number of sessions created",
		},
		[]string{"role"}, // initiator, responder
	)

	// SessionsActive tracks sessions currently in ACTIVE.
	SessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of currently active sessions",
		},
	)

	// SessionsClosed tracks sessions reaching CLOSED.
	SessionsClosed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "closed_total",
			Help:      "Total number of sessions closed",
		},
		[]string{"reason"}, // local, peer, handover
	)

	// SessionsFaulted tracks sessions reaching FAULTED.
	SessionsFaulted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "faulted_total",
			Help:      "Total number of sessions entering FAULTED",
		},
		[]string{"cause"},
	)

	// SessionDuration tracks how long a session stayed ACTIVE before
	// closing or faulting, keyed by the terminal state it reached.
	SessionDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "duration_seconds",
			Help:      "Lifetime of a session from ACTIVE to its terminal state",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12), // 1s to ~48.5 days
		},
		[]string{"terminal_state"},
	)

	// SessionMessageSize tracks plaintext sizes passing through the
	// pairwise message codec.
	SessionMessageSize = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "message_size_bytes",
			Help:      "Size of plaintext passed to the message codec",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10), // 16B to 4MB
		},
		[]string{"direction"}, // inbound, outbound
	)
)
