// SPDX-License-Identifier: LGPL-3.0-or-later

package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/wire"
)

func newTestCodecs(t *testing.T) (initiator, responder *Codec) {
	t.Helper()
	var sessionKey [32]byte
	copy(sessionKey[:], []byte("01234567890123456789012345678901"))
	var mailboxID [32]byte
	copy(mailboxID[:], []byte("abcdefghijabcdefghijabcdefghijab"))
	sid := strings.Repeat("ab", 32)

	initiator = NewCodec(sid, mailboxID, sessionKey, wire.DirectionAtoB)
	responder = NewCodec(sid, mailboxID, sessionKey, wire.DirectionBtoA)
	return initiator, responder
}

func unmarshalMsg(t *testing.T, raw []byte) *wire.Msg {
	t.Helper()
	tree, err := canonical.Parse(raw)
	require.NoError(t, err)
	m := tree.(map[string]interface{})
	msg := &wire.Msg{
		Type:       m["type"].(string),
		Version:    int(m["version"].(float64)),
		SID:        m["sid"].(string),
		MailboxID:  m["mailbox_id"].(string),
		Direction:  wire.Direction(m["direction"].(string)),
		Seq:        uint64(m["seq"].(float64)),
		Nonce:      m["nonce"].(string),
		Ciphertext: m["ciphertext"].(string),
	}
	return msg
}

// S2 Round trip.
func TestPackUnpackRoundTrip(t *testing.T) {
	initiator, responder := newTestCodecs(t)

	raw, err := initiator.Pack([]byte("Secret Handshake"), 0)
	require.NoError(t, err)

	msg := unmarshalMsg(t, raw)
	plaintext, err := responder.Unpack(msg)
	require.NoError(t, err)
	require.Equal(t, "Secret Handshake", string(plaintext))
}

func TestUnpackRejectsMailboxMismatch(t *testing.T) {
	_, responder := newTestCodecs(t)
	var otherMailbox [32]byte
	copy(otherMailbox[:], []byte("zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"))
	other := NewCodec(responder.SID, otherMailbox, responder.SessionKey, wire.DirectionAtoB)

	raw, err := other.Pack([]byte("hi"), 0)
	require.NoError(t, err)
	msg := unmarshalMsg(t, raw)

	_, err = responder.Unpack(msg)
	require.ErrorIs(t, err, ErrMailboxMismatch)
	var dropped *Dropped
	require.ErrorAs(t, err, &dropped)
}

func TestUnpackRejectsReflection(t *testing.T) {
	initiator, _ := newTestCodecs(t)
	raw, err := initiator.Pack([]byte("hi"), 0)
	require.NoError(t, err)
	msg := unmarshalMsg(t, raw)

	// initiator trying to "receive" its own outbound direction
	_, err = initiator.Unpack(msg)
	require.ErrorIs(t, err, ErrReflection)
}

// S5 Tampered ciphertext.
func TestUnpackFailsOnTamperedCiphertext(t *testing.T) {
	initiator, responder := newTestCodecs(t)
	raw, err := initiator.Pack([]byte("Secret Handshake"), 0)
	require.NoError(t, err)
	msg := unmarshalMsg(t, raw)

	ctBytes, err := canonical.FromHex(msg.Ciphertext)
	require.NoError(t, err)
	ctBytes[0] ^= 0xFF
	msg.Ciphertext = canonical.ToHex(ctBytes)

	_, err = responder.Unpack(msg)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestUnpackRejectsBadNonceLength(t *testing.T) {
	initiator, responder := newTestCodecs(t)
	raw, err := initiator.Pack([]byte("hi"), 0)
	require.NoError(t, err)
	msg := unmarshalMsg(t, raw)
	msg.Nonce = "aabb"

	_, err = responder.Unpack(msg)
	require.ErrorIs(t, err, ErrNonceLengthInvalid)
}
