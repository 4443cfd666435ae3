// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessed tracks Pack/Unpack calls on the pairwise and
	// group message codecs.
	MessagesProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "processed_total",
			Help:      "Total number of messages packed or unpacked",
		},
		[]string{"codec", "direction", "status"}, // pairwise/group, pack/unpack, success/failure
	)

	// ReplayDropped tracks messages rejected by sequence/nonce replay
	// checks.
	ReplayDropped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "replay_dropped_total",
			Help:      "Total number of messages dropped as replays",
		},
		[]string{"codec"},
	)

	// MessageProcessingDuration tracks Pack/Unpack latency.
	MessageProcessingDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "processing_duration_seconds",
			Help:      "Message pack/unpack duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 12), // 10µs to ~20ms
		},
		[]string{"codec", "direction"},
	)
)
