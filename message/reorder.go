// SPDX-License-Identifier: LGPL-3.0-or-later

package message

import (
	"errors"
	"sync"

	"github.com/kktp-network/kktp/internal/metrics"
)

// DefaultMaxBufferSize is the default bound on an inbound reorder
// buffer before it is considered an overflow fault (spec §4.7).
const DefaultMaxBufferSize = 256

// ErrBufferOverflow is session-fatal: too many out-of-order messages
// are pending without the gap being filled.
var ErrBufferOverflow = errors.New("message: reorder buffer overflow")

// Outcome classifies how one inbound sequence number was handled.
type Outcome int

const (
	// OutcomeDelivered means the plaintext is ready for the application
	// immediately (and possibly along with previously-buffered entries).
	OutcomeDelivered Outcome = iota
	// OutcomeBuffered means the sequence is ahead of expected and was
	// queued pending the gap being filled.
	OutcomeBuffered
	// OutcomeDuplicate means the sequence is behind expected: a replay
	// or duplicate, dropped with a warn-level observable event.
	OutcomeDuplicate
)

// ReorderBuffer enforces the per-direction sequence discipline: deliver
// in strictly ascending order starting at 0, buffer early arrivals,
// drop stale ones, and fault on overflow.
type ReorderBuffer struct {
	mu       sync.Mutex
	expected uint64
	maxSize  int
	pending  map[uint64][]byte
}

// NewReorderBuffer builds a buffer bounded at maxSize entries. A
// maxSize of 0 uses DefaultMaxBufferSize.
func NewReorderBuffer(maxSize int) *ReorderBuffer {
	return NewReorderBufferAt(maxSize, 0)
}

// NewReorderBufferAt builds a buffer bounded at maxSize entries, primed
// to expect the given sequence number next. Used when restoring a
// session from a persisted resume record.
func NewReorderBufferAt(maxSize int, expected uint64) *ReorderBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxBufferSize
	}
	return &ReorderBuffer{maxSize: maxSize, expected: expected, pending: make(map[uint64][]byte)}
}

// Accept ingests one (seq, plaintext) pair. It returns the outcome and,
// for OutcomeDelivered, the ordered run of plaintexts now ready for the
// application (the triggering message first, then any buffered messages
// that became contiguous).
func (b *ReorderBuffer) Accept(seq uint64, plaintext []byte) (Outcome, [][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case seq < b.expected:
		metrics.ReplayDropped.WithLabelValues("pairwise").Inc()
		return OutcomeDuplicate, nil, nil
	case seq == b.expected:
		delivered := [][]byte{plaintext}
		b.expected++
		for {
			next, ok := b.pending[b.expected]
			if !ok {
				break
			}
			delivered = append(delivered, next)
			delete(b.pending, b.expected)
			b.expected++
		}
		return OutcomeDelivered, delivered, nil
	default:
		if _, exists := b.pending[seq]; !exists && len(b.pending) >= b.maxSize {
			return OutcomeBuffered, nil, ErrBufferOverflow
		}
		b.pending[seq] = plaintext
		return OutcomeBuffered, nil, nil
	}
}

// Expected returns the next sequence number this buffer expects.
func (b *ReorderBuffer) Expected() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expected
}

// PendingCount returns the number of buffered, not-yet-deliverable
// entries.
func (b *ReorderBuffer) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
