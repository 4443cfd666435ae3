// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/crypto/keys"
	"github.com/kktp-network/kktp/handshake"
	"github.com/kktp-network/kktp/message"
	"github.com/kktp-network/kktp/wire"
)

// buildHandshakePair runs a real discovery/response exchange (no VRF)
// and returns both sides' keys and handshake results.
func buildHandshakePair(t *testing.T) (initSig, initDH, respSig, respDH *keys.KeyPair, initResult, respResult *handshake.Result) {
	t.Helper()

	engine := handshake.NewEngine(nil)
	factory := wire.NewFactory(nil)

	var err error
	initSig, err = keys.Generate()
	require.NoError(t, err)
	initDH, err = keys.Generate()
	require.NoError(t, err)
	respSig, err = keys.Generate()
	require.NoError(t, err)
	respDH, err = keys.Generate()
	require.NoError(t, err)

	sid, err := factory.NewSID([]byte("integration-seed"))
	require.NoError(t, err)

	d := factory.NewDiscovery(sid, initSig.PublicCompressed(), initDH.PublicCompressed())
	sigHex, err := wire.SignAnchor(initSig, d, []string{"sig"}, true)
	require.NoError(t, err)
	d.Sig = sigHex

	r, err := factory.NewResponse(d, respSig.PublicCompressed(), respDH.PublicCompressed())
	require.NoError(t, err)
	sigRespHex, err := wire.SignAnchor(respSig, r, []string{"sig_resp"}, false)
	require.NoError(t, err)
	r.SigResp = sigRespHex

	initResult, err = engine.Run(d, r, initDH, true)
	require.NoError(t, err)
	respResult, err = engine.Run(d, r, respDH, false)
	require.NoError(t, err)

	return initSig, initDH, respSig, respDH, initResult, respResult
}

// parseWireMsg decodes a packed message envelope back into a wire.Msg,
// mirroring how a transport layer would hand an inbound frame to Unpack.
func parseWireMsg(t *testing.T, raw []byte) *wire.Msg {
	t.Helper()
	tree, err := canonical.Parse(raw)
	require.NoError(t, err)
	m := tree.(map[string]interface{})
	return &wire.Msg{
		Type:       m["type"].(string),
		Version:    int(m["version"].(float64)),
		SID:        m["sid"].(string),
		MailboxID:  m["mailbox_id"].(string),
		Direction:  wire.Direction(m["direction"].(string)),
		Seq:        uint64(m["seq"].(float64)),
		Nonce:      m["nonce"].(string),
		Ciphertext: m["ciphertext"].(string),
	}
}

// S1 Establishment + S2 Round trip, chained through real Context
// objects on both sides of a handshake rather than hand-built codecs.
func TestEstablishmentThenRoundTrip(t *testing.T) {
	initSig, initDH, respSig, respDH, initResult, respResult := buildHandshakePair(t)

	require.Equal(t, initResult.MailboxID, respResult.MailboxID)
	require.Equal(t, initResult.SessionKey, respResult.SessionKey)

	initCtx := NewContext("sid", true, initSig, initDH)
	require.NoError(t, initCtx.Transition(StateDiscovering))
	require.NoError(t, initCtx.Transition(StateConnecting))
	require.NoError(t, initCtx.InstallSessionKey(initResult.MailboxID, initResult.SessionKey, respSig.PublicCompressed(), respDH.PublicCompressed(), 0))

	respCtx := NewContext("sid", false, respSig, respDH)
	require.NoError(t, respCtx.Transition(StateDiscovering))
	require.NoError(t, respCtx.Transition(StateConnecting))
	require.NoError(t, respCtx.InstallSessionKey(respResult.MailboxID, respResult.SessionKey, initSig.PublicCompressed(), initDH.PublicCompressed(), 0))

	require.Equal(t, StateActive, initCtx.State)
	require.Equal(t, StateActive, respCtx.State)

	raw, err := initCtx.Codec().Pack([]byte("Secret Handshake"), initCtx.NextOutboundSeq())
	require.NoError(t, err)

	plaintext, err := respCtx.Codec().Unpack(parseWireMsg(t, raw))
	require.NoError(t, err)
	require.Equal(t, "Secret Handshake", string(plaintext))
}

// S3 Out-of-order: seq 0,2,1 delivered in that order releases 0
// immediately, buffers 2, then releases 1 and 2 together.
func TestOutOfOrderDeliveryReleasesInSequence(t *testing.T) {
	_, _, _, _, initResult, respResult := buildHandshakePair(t)

	initCtx := NewContext("sid", true, nil, nil)
	require.NoError(t, initCtx.Transition(StateDiscovering))
	require.NoError(t, initCtx.Transition(StateConnecting))
	require.NoError(t, initCtx.InstallSessionKey(initResult.MailboxID, initResult.SessionKey, nil, nil, 0))

	respCtx := NewContext("sid", false, nil, nil)
	require.NoError(t, respCtx.Transition(StateDiscovering))
	require.NoError(t, respCtx.Transition(StateConnecting))
	require.NoError(t, respCtx.InstallSessionKey(respResult.MailboxID, respResult.SessionKey, nil, nil, 0))

	codec := initCtx.Codec()
	raw0, err := codec.Pack([]byte("m1"), 0)
	require.NoError(t, err)
	raw1, err := codec.Pack([]byte("m2"), 1)
	require.NoError(t, err)
	raw2, err := codec.Pack([]byte("m3"), 2)
	require.NoError(t, err)

	plain0, err := respCtx.Codec().Unpack(parseWireMsg(t, raw0))
	require.NoError(t, err)
	outcome0, delivered0, err := respCtx.AcceptInbound(0, plain0)
	require.NoError(t, err)
	require.Equal(t, message.OutcomeDelivered, outcome0)
	require.Equal(t, [][]byte{[]byte("m1")}, delivered0)

	plain2, err := respCtx.Codec().Unpack(parseWireMsg(t, raw2))
	require.NoError(t, err)
	outcome2, delivered2, err := respCtx.AcceptInbound(2, plain2)
	require.NoError(t, err)
	require.Equal(t, message.OutcomeBuffered, outcome2)
	require.Empty(t, delivered2)

	plain1, err := respCtx.Codec().Unpack(parseWireMsg(t, raw1))
	require.NoError(t, err)
	outcome1, delivered1, err := respCtx.AcceptInbound(1, plain1)
	require.NoError(t, err)
	require.Equal(t, message.OutcomeDelivered, outcome1)
	require.Equal(t, [][]byte{[]byte("m2"), []byte("m3")}, delivered1)
}

// S5 Tampered ciphertext, driven through Context.Receive rather than a
// bare Codec: a bit flip must fail decryption and fault the session.
func TestReceiveFaultsSessionOnTamperedCiphertext(t *testing.T) {
	_, _, _, _, initResult, respResult := buildHandshakePair(t)

	initCtx := NewContext("sid", true, nil, nil)
	require.NoError(t, initCtx.Transition(StateDiscovering))
	require.NoError(t, initCtx.Transition(StateConnecting))
	require.NoError(t, initCtx.InstallSessionKey(initResult.MailboxID, initResult.SessionKey, nil, nil, 0))

	respCtx := NewContext("sid", false, nil, nil)
	require.NoError(t, respCtx.Transition(StateDiscovering))
	require.NoError(t, respCtx.Transition(StateConnecting))
	require.NoError(t, respCtx.InstallSessionKey(respResult.MailboxID, respResult.SessionKey, nil, nil, 0))

	raw, err := initCtx.Codec().Pack([]byte("Secret Handshake"), initCtx.NextOutboundSeq())
	require.NoError(t, err)

	msg := parseWireMsg(t, raw)
	ctBytes, err := canonical.FromHex(msg.Ciphertext)
	require.NoError(t, err)
	ctBytes[0] ^= 0xFF
	msg.Ciphertext = canonical.ToHex(ctBytes)

	_, _, err = respCtx.Receive(msg)
	require.ErrorIs(t, err, message.ErrDecryptionFailed)
	require.Equal(t, StateFaulted, respCtx.State)
}

// Mailbox/SID mismatches are a silent drop per spec §7: Receive must
// not fault the session.
func TestReceiveSilentlyDropsMailboxMismatch(t *testing.T) {
	_, _, _, _, initResult, respResult := buildHandshakePair(t)

	initCtx := NewContext("sid", true, nil, nil)
	require.NoError(t, initCtx.Transition(StateDiscovering))
	require.NoError(t, initCtx.Transition(StateConnecting))
	require.NoError(t, initCtx.InstallSessionKey(initResult.MailboxID, initResult.SessionKey, nil, nil, 0))

	respCtx := NewContext("sid", false, nil, nil)
	require.NoError(t, respCtx.Transition(StateDiscovering))
	require.NoError(t, respCtx.Transition(StateConnecting))
	require.NoError(t, respCtx.InstallSessionKey(respResult.MailboxID, respResult.SessionKey, nil, nil, 0))

	var otherMailbox [32]byte
	copy(otherMailbox[:], []byte("zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"))
	other := message.NewCodec(initCtx.SID, otherMailbox, initResult.SessionKey, wire.DirectionAtoB)
	raw, err := other.Pack([]byte("hello"), 0)
	require.NoError(t, err)

	msg := parseWireMsg(t, raw)

	var dropped *message.Dropped
	_, _, err = respCtx.Receive(msg)
	require.ErrorAs(t, err, &dropped)
	require.Equal(t, StateActive, respCtx.State)
}
