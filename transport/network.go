// SPDX-License-Identifier: LGPL-3.0-or-later

// Package transport defines the carrier-DAG collaborator contract the
// handover engine and lobby overlay depend on (spec §6 "Collaborator
// contracts consumed by the core"), independent of any concrete ledger
// implementation — mirroring the teacher's transport.MessageTransport
// seam (pkg/agent/transport/interface.go) that keeps the security core
// decoupled from gRPC/HTTP/WebSocket specifics.
package transport

import (
	"context"
	"time"
)

// Payload is one entry observed on the carrier DAG.
type Payload struct {
	Hash        string
	Data        string
	PublishedAt time.Time
}

// ScanOptions bounds a DAG walk: it starts at StartHash (or the
// beginning of the DAG if empty), visits entries matching any of
// Prefixes, and stops when OnMatch returns true, MaxSeconds elapses, or
// Stop is closed — whichever comes first.
type ScanOptions struct {
	StartHash  string
	MaxSeconds float64
	Prefixes   []string
	OnMatch    func(Payload) bool
	Stop       <-chan struct{}
}

// Network is the carrier-DAG adapter the core depends on. Publish
// posts an opaque payload and returns its content hash; Scan walks the
// DAG synchronously, invoking OnMatch for every payload whose Data has
// one of the requested prefixes.
type Network interface {
	Publish(ctx context.Context, payload string) (hash string, err error)
	Scan(ctx context.Context, opts ScanOptions) error
}
