// SPDX-License-Identifier: LGPL-3.0-or-later

package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kktp-network/kktp/internal/logger"
)

// Manager layers Record (de)serialization over a Store, so callers
// never marshal JSON or construct keys themselves.
type Manager struct {
	store  Store
	prefix string
}

// NewManager builds a Manager. An empty prefix uses DefaultKeyPrefix.
func NewManager(store Store, prefix string) *Manager {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Manager{store: store, prefix: prefix}
}

// Save writes a resume record, rewriting any prior record for the same
// SID (spec §4.8: "a blob is rewritten after every state-affecting
// operation").
func (m *Manager) Save(ctx context.Context, rec *Record) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("persistence: marshal record: %w", err)
	}
	return m.store.Put(ctx, Key(m.prefix, rec.SID), blob)
}

// Load reads back a resume record by session ID. A decrypt failure is
// reported as a status object (the returned error) rather than a
// panic, with a matching observable event (spec §7).
func (m *Manager) Load(ctx context.Context, sid string) (*Record, error) {
	blob, err := m.store.Get(ctx, Key(m.prefix, sid))
	if err != nil {
		logDecryptFailure(sid, err)
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal record: %w", err)
	}
	return &rec, nil
}

func logDecryptFailure(sid string, err error) {
	if !errors.Is(err, ErrDecryptFailed) {
		return
	}
	logger.Warn("persistence: resume record failed to decrypt",
		logger.String("sid", sid),
		logger.Error(logger.NewKKTPError(logger.ErrCodePersistenceFailed, "resume record decrypt failed", err)))
}

// Delete removes a resume record, e.g. on graceful close or successful
// handover.
func (m *Manager) Delete(ctx context.Context, sid string) error {
	return m.store.Delete(ctx, Key(m.prefix, sid))
}

// LoadLatest returns the most recently written resume record under
// this Manager's prefix, used by the handover engine to find the
// predecessor session to resume (spec §4.9's findLatestResumeRecord).
func (m *Manager) LoadLatest(ctx context.Context) (*Record, error) {
	key, blob, err := m.store.FindLatestResumeRecord(ctx, m.prefix)
	if err != nil {
		logDecryptFailure(key, err)
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal record: %w", err)
	}
	return &rec, nil
}
