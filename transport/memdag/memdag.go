// SPDX-License-Identifier: LGPL-3.0-or-later

// Package memdag is an in-memory transport.Network test double: an
// append-only, hash-linked log standing in for the carrier DAG. Built
// in the style of the teacher's MockTransport
// (pkg/agent/transport/mock.go) — a minimal recorder with deterministic
// behavior, no network I/O, safe for concurrent use in tests.
package memdag

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/kktp-network/kktp/transport"
)

type node struct {
	hash string
	data string
	at   time.Time
}

// DAG is a shared, hash-chained in-memory ledger. Multiple Peer values
// (one per simulated participant) can Publish/Scan against the same
// DAG to exercise cross-peer discovery in tests.
type DAG struct {
	mu    sync.Mutex
	nodes []node
}

// New builds an empty DAG.
func New() *DAG {
	return &DAG{}
}

// Peer returns a transport.Network bound to this DAG. Distinct peers
// publish into and scan the same underlying node list.
func (d *DAG) Peer() transport.Network {
	return &peer{dag: d}
}

type peer struct {
	dag *DAG
}

func (p *peer) Publish(_ context.Context, payload string) (string, error) {
	p.dag.mu.Lock()
	defer p.dag.mu.Unlock()

	var prev string
	if n := len(p.dag.nodes); n > 0 {
		prev = p.dag.nodes[n-1].hash
	}
	sum := blake2b.Sum256([]byte(prev + payload))
	hash := hex.EncodeToString(sum[:])

	p.dag.nodes = append(p.dag.nodes, node{hash: hash, data: payload, at: time.Now()})
	return hash, nil
}

func (p *peer) Scan(ctx context.Context, opts transport.ScanOptions) error {
	// A non-positive budget means "out of time": check what's already
	// published, once, and return without blocking. Callers computing a
	// remaining-time budget near a deadline rely on this, not on some
	// implicit default window.
	deadline := time.Now().Add(time.Duration(opts.MaxSeconds * float64(time.Second)))

	start := 0
	if opts.StartHash != "" {
		p.dag.mu.Lock()
		for i, n := range p.dag.nodes {
			if n.hash == opts.StartHash {
				start = i + 1
				break
			}
		}
		p.dag.mu.Unlock()
	}

	for i := start; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if opts.Stop != nil {
			select {
			case <-opts.Stop:
				return nil
			default:
			}
		}

		p.dag.mu.Lock()
		if i >= len(p.dag.nodes) {
			p.dag.mu.Unlock()
			if time.Now().After(deadline) {
				return nil
			}
			// Real carrier DAGs are append-only and grow concurrently;
			// poll briefly for new entries rather than giving up the
			// instant the currently-known tip is exhausted.
			time.Sleep(5 * time.Millisecond)
			i--
			continue
		}
		n := p.dag.nodes[i]
		p.dag.mu.Unlock()

		if !matchesAny(n.data, opts.Prefixes) {
			continue
		}
		if opts.OnMatch != nil {
			stop := opts.OnMatch(transport.Payload{Hash: n.hash, Data: n.data, PublishedAt: n.at})
			if stop {
				return nil
			}
		}
	}
}

func matchesAny(data string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(data, p) {
			return true
		}
	}
	return false
}
