// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kktp-network/kktp/config"
	"github.com/kktp-network/kktp/persistence"
)

func TestDumpResumeLoadsFileBackedRecord(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.PersistenceConfig{Backend: "file", FileDir: dir}

	store, closeFn, err := openStore(cfg)
	require.NoError(t, err)
	defer closeFn()

	mgr := persistence.NewManager(store, "")
	rec := &persistence.Record{SID: "sid-1", MailboxID: "ab", OutboundSeq: 3, CreatedAt: time.Now()}
	require.NoError(t, mgr.Save(context.Background(), rec))

	loaded, err := mgr.Load(context.Background(), "sid-1")
	require.NoError(t, err)
	require.Equal(t, rec.SID, loaded.SID)
	require.Equal(t, rec.OutboundSeq, loaded.OutboundSeq)
}

func TestOpenStoreRejectsMissingPostgresSection(t *testing.T) {
	cfg := &config.PersistenceConfig{Backend: "postgres"}
	_, _, err := openStore(cfg)
	require.Error(t, err)
}
