// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kktp-network/kktp/crypto/keys"
)

func TestToRecordRestoreFromRecordRoundTrip(t *testing.T) {
	ctx := newTestContext(t, true)
	require.NoError(t, ctx.Transition(StateDiscovering))
	require.NoError(t, ctx.Transition(StateConnecting))

	var mbox, key [32]byte
	copy(mbox[:], []byte("mailboxmailboxmailboxmailboxmai"))
	copy(key[:], []byte("sessionkeysessionkeysessionkeys"))
	peerSig, err := keys.Generate()
	require.NoError(t, err)

	require.NoError(t, ctx.InstallSessionKey(mbox, key, peerSig.PublicCompressed(), nil, 0))
	ctx.NextOutboundSeq()
	ctx.NextOutboundSeq()
	_, _, err = ctx.AcceptInbound(0, []byte("hello"))
	require.NoError(t, err)

	rec := ctx.ToRecord()
	require.Equal(t, ctx.SID, rec.SID)
	require.Equal(t, uint64(2), rec.OutboundSeq)

	restored, err := RestoreFromRecord(rec, ctx.MySigPrivate, ctx.MyDHPrivate)
	require.NoError(t, err)
	require.Equal(t, ctx.SID, restored.SID)
	require.Equal(t, ctx.MailboxID, restored.MailboxID)
	require.Equal(t, uint64(2), restored.OutboundSeq)
	require.Equal(t, StateActive, restored.State)
	require.Len(t, restored.MessageLog, 1)
	require.Equal(t, []byte("hello"), restored.MessageLog[0].Plaintext)
}
