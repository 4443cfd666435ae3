// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HandshakesInitiated tracks handshake engine runs started, by role.
	HandshakesInitiated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshakes",
			Name:      "initiated_total",
			Help:      "Total number of handshakes initiated",
		},
		[]string{"role"}, // initiator, responder
	)

	// HandshakesCompleted tracks handshakes that ran to completion.
	HandshakesCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshakes",
			Name:      "completed_total",
			Help:      "Total number of handshakes completed",
		},
		[]string{"status"}, // success, failure
	)

	// HandshakesFailed tracks handshake failures by cause.
	HandshakesFailed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshakes",
			Name:      "failed_total",
			Help:      "Total number of failed handshakes by error type",
		},
		[]string{"error_type"}, // signature, vrf, key_echo, other
	)

	// HandshakeDuration tracks how long Engine.Run took end to end.
	HandshakeDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handshakes",
			Name:      "duration_seconds",
			Help:      "Handshake run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"status"},
	)
)
