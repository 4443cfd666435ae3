// SPDX-License-Identifier: LGPL-3.0-or-later

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManagerSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), "")

	rec := &Record{
		SID:           "sid-1",
		MailboxID:     "aa",
		SessionKeyHex: "bb",
		OutboundSeq:   3,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, m.Save(ctx, rec))

	got, err := m.Load(ctx, "sid-1")
	require.NoError(t, err)
	require.Equal(t, rec.SID, got.SID)
	require.Equal(t, rec.OutboundSeq, got.OutboundSeq)

	require.NoError(t, m.Delete(ctx, "sid-1"))
	_, err = m.Load(ctx, "sid-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerLoadLatest(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), "")

	require.NoError(t, m.Save(ctx, &Record{SID: "sid-a"}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, m.Save(ctx, &Record{SID: "sid-b"}))

	latest, err := m.LoadLatest(ctx)
	require.NoError(t, err)
	require.Equal(t, "sid-b", latest.SID)
}

func TestKeyDefaultPrefix(t *testing.T) {
	require.Equal(t, "kktp_resume_xyz", Key("", "xyz"))
	require.Equal(t, "custom_xyz", Key("custom_", "xyz"))
}
