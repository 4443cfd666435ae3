// SPDX-License-Identifier: LGPL-3.0-or-later

package handshake

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/kktp-network/kktp/crypto/keys"
	"github.com/kktp-network/kktp/crypto/vrf"
	"github.com/kktp-network/kktp/wire"
)

func vrfSK(t *testing.T) (*secp256k1.PrivateKey, error) {
	t.Helper()
	return secp256k1.GeneratePrivateKey()
}

// buildValidPair runs a full discovery/response exchange with real
// signatures, optionally binding VRF, and returns the anchors plus the
// DH key pairs needed to run the handshake.
func buildValidPair(t *testing.T, withVRF bool) (*wire.Discovery, *wire.Response, *keys.KeyPair, *keys.KeyPair, *Engine) {
	t.Helper()

	var prover *vrfProverPair
	var engine *Engine
	if withVRF {
		prover = newVRFProverPair(t)
		engine = NewEngine(vrf.NewVerifier())
	} else {
		engine = NewEngine(nil)
	}

	initSig, err := keys.Generate()
	require.NoError(t, err)
	initDH, err := keys.Generate()
	require.NoError(t, err)
	respSig, err := keys.Generate()
	require.NoError(t, err)
	respDH, err := keys.Generate()
	require.NoError(t, err)

	var factory *wire.Factory
	if withVRF {
		factory = wire.NewFactory(prover.initiator)
	} else {
		factory = wire.NewFactory(nil)
	}
	sid, err := factory.NewSID([]byte("seed"))
	require.NoError(t, err)

	d := factory.NewDiscovery(sid, initSig.PublicCompressed(), initDH.PublicCompressed())
	sigHex, err := wire.SignAnchor(initSig, d, []string{"sig"}, true)
	require.NoError(t, err)
	d.Sig = sigHex

	var respFactory *wire.Factory
	if withVRF {
		respFactory = wire.NewFactory(prover.responder)
	} else {
		respFactory = wire.NewFactory(nil)
	}
	r, err := respFactory.NewResponse(d, respSig.PublicCompressed(), respDH.PublicCompressed())
	require.NoError(t, err)
	sigRespHex, err := wire.SignAnchor(respSig, r, []string{"sig_resp"}, false)
	require.NoError(t, err)
	r.SigResp = sigRespHex

	return d, r, initDH, respDH, engine
}

type vrfProverPair struct {
	initiator *vrf.Prover
	responder *vrf.Prover
}

func newVRFProverPair(t *testing.T) *vrfProverPair {
	t.Helper()
	// Reuse the discovery/response signing keys as VRF keys is not
	// required by the spec; any stable key pair works as a VRF source.
	sk1, err := vrfSK(t)
	require.NoError(t, err)
	sk2, err := vrfSK(t)
	require.NoError(t, err)
	return &vrfProverPair{initiator: vrf.NewProver(sk1), responder: vrf.NewProver(sk2)}
}

func TestHandshakeSucceedsWithoutVRF(t *testing.T) {
	d, r, initDH, _, engine := buildValidPair(t, false)

	result, err := engine.Run(d, r, initDH, true)
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, result.SessionKey)
	require.NotEqual(t, [32]byte{}, result.MailboxID)
}

func TestHandshakeBothSidesAgreeOnMailboxAndKey(t *testing.T) {
	d, r, initDH, respDH, engine := buildValidPair(t, false)

	initResult, err := engine.Run(d, r, initDH, true)
	require.NoError(t, err)
	respResult, err := engine.Run(d, r, respDH, false)
	require.NoError(t, err)

	require.Equal(t, initResult.MailboxID, respResult.MailboxID)
	require.Equal(t, initResult.SessionKey, respResult.SessionKey)
}

func TestHandshakeRejectsKeyEchoMismatch(t *testing.T) {
	d, r, initDH, _, engine := buildValidPair(t, false)
	other, err := keys.Generate()
	require.NoError(t, err)
	r.InitiatorPubSig = other.PublicHex()

	_, err = engine.Run(d, r, initDH, true)
	require.ErrorIs(t, err, ErrKeyEchoMismatch)
}

func TestHandshakeRejectsTamperedSignature(t *testing.T) {
	d, r, initDH, _, engine := buildValidPair(t, false)
	d.PubDH = d.PubDH[:len(d.PubDH)-2] + "00"

	_, err := engine.Run(d, r, initDH, true)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestHandshakeSucceedsWithVRF(t *testing.T) {
	d, r, initDH, respDH, engine := buildValidPair(t, true)
	require.NotNil(t, d.VrfValue)
	require.NotNil(t, r.VrfValue)

	_, err := engine.Run(d, r, initDH, true)
	require.NoError(t, err)
	_, err = engine.Run(d, r, respDH, false)
	require.NoError(t, err)
}

func TestHandshakeRejectsVRFPairInconsistency(t *testing.T) {
	d, r, initDH, _, engine := buildValidPair(t, true)
	r.VrfProof = nil

	_, err := engine.Run(d, r, initDH, true)
	require.ErrorIs(t, err, ErrVrfPairInconsistent)
}
