// SPDX-License-Identifier: LGPL-3.0-or-later

// Package metrics exposes Prometheus instrumentation for sessions,
// handshakes, handover, lobby overlays, and the crypto primitives that
// back all of them. Every metric lives on a private Registry rather
// than prometheus.DefaultRegisterer so embedding applications can run
// more than one KKTP node per process without collector collisions.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "kktp"

// Registry collects every metric declared in this package. Handler
// and StartServer serve it; callers embedding KKTP into a larger
// process can also register it directly with their own exporter.
var Registry = prometheus.NewRegistry()
