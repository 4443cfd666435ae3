// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LobbyMembersActive tracks members currently on a host's roster.
	LobbyMembersActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lobby",
			Name:      "members_active",
			Help:      "Number of members currently on the roster",
		},
	)

	// LobbyJoinRequests tracks join requests by outcome.
	LobbyJoinRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lobby",
			Name:      "join_requests_total",
			Help:      "Total number of lobby join requests",
		},
		[]string{"status"}, // accepted, rejected
	)

	// LobbyKeyRotations tracks group key rotations by trigger.
	LobbyKeyRotations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lobby",
			Name:      "key_rotations_total",
			Help:      "Total number of group key rotations",
		},
		[]string{"reason"}, // kick, timer
	)

	// LobbyGroupMessages tracks group message seal/open operations.
	LobbyGroupMessages = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lobby",
			Name:      "group_messages_total",
			Help:      "Total number of group messages sealed or opened",
		},
		[]string{"direction", "status"}, // seal/open, success/failure
	)
)
