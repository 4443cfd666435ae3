// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/internal/metrics"
)

// VRFProver is the collaborator contract the factory uses to attach an
// optional VRF binding. Implementations live in crypto/vrf; this
// indirection lets the factory be tested without real curve math.
type VRFProver interface {
	// ProveVRF returns (valueHex, proofHex, ok). ok is false when no VRF
	// source is configured or proof generation failed; in that case the
	// factory leaves both vrf_value and vrf_proof null.
	ProveVRF(seedInput []byte) (valueHex string, proofHex string, ok bool)
}

// Signer is the collaborator contract for the wallet's signing facility.
type Signer interface {
	Sign(message []byte) (sig []byte, err error)
}

// Factory builds anchors. It never signs directly — callers use
// SignAnchor, which computes the signing preimage the same way for every anchor type,
// matching spec §4.4 ("the factory never signs").
type Factory struct {
	VRF VRFProver // nil disables VRF bindings entirely
}

// NewFactory builds a Factory. prover may be nil to disable VRF.
func NewFactory(prover VRFProver) *Factory {
	return &Factory{VRF: prover}
}

// NewSID derives a 32-byte session id, preferring in order: a full VRF
// source, a partial VRF source (value only), then a random UUID hash.
// The VRF outputs here are an entropy source for the SID, independent
// of the per-anchor VRF binding computed during handshake verification.
func (f *Factory) NewSID(seed []byte) ([]byte, error) {
	if f.VRF != nil {
		if valueHex, _, ok := f.VRF.ProveVRF(seed); ok {
			raw, err := canonical.FromHexLen(valueHex, 32)
			if err == nil {
				return raw, nil
			}
		}
	}
	id := uuid.New()
	h := blake2b.Sum256(id[:])
	return h[:], nil
}

// NewDiscovery builds an unsigned discovery anchor. Call SignAnchor to
// compute the signature before publishing.
func (f *Factory) NewDiscovery(sid, pubSig, pubDH []byte) *Discovery {
	d := &Discovery{
		Type:    "discovery",
		Version: ProtocolVersion,
		SID:     canonical.ToHex(sid),
		PubSig:  canonical.ToHex(pubSig),
		PubDH:   canonical.ToHex(pubDH),
	}
	f.attachVRF(sid, pubSig, pubDH, &d.VrfValue, &d.VrfProof)
	return d
}

// NewResponse builds an unsigned response anchor echoing the
// initiator's keys verbatim.
func (f *Factory) NewResponse(d *Discovery, pubSigResp, pubDHResp []byte) (*Response, error) {
	sidBytes, err := canonical.FromHexLen(d.SID, 32)
	if err != nil {
		return nil, fmt.Errorf("wire: response: %w", err)
	}
	dPubSig, err := canonical.FromHexLen(d.PubSig, 33)
	if err != nil {
		return nil, fmt.Errorf("wire: response: %w", err)
	}
	dPubDH, err := canonical.FromHexLen(d.PubDH, 33)
	if err != nil {
		return nil, fmt.Errorf("wire: response: %w", err)
	}
	r := &Response{
		Type:            "response",
		Version:         ProtocolVersion,
		SID:             d.SID,
		InitiatorPubSig: d.PubSig,
		InitiatorPubDH:  d.PubDH,
		PubSigResp:      canonical.ToHex(pubSigResp),
		PubDHResp:       canonical.ToHex(pubDHResp),
	}
	// Bound over D.pub_sig || D.pub_dh || R.pub_sig_resp || R.pub_dh_resp
	// || D.sid, matching handshake.vrfInputResponse exactly.
	f.attachResponseVRF(dPubSig, dPubDH, pubSigResp, pubDHResp, sidBytes, &r.VrfValue, &r.VrfProof)
	return r, nil
}

// NewSessionEnd builds a session-end anchor for the given reason.
func (f *Factory) NewSessionEnd(sid, pubSig []byte, reason string) *SessionEnd {
	return &SessionEnd{
		Type:    "session_end",
		Version: ProtocolVersion,
		SID:     canonical.ToHex(sid),
		PubSig:  canonical.ToHex(pubSig),
		Reason:  reason,
	}
}

func (f *Factory) attachVRF(sid, pubA, pubB []byte, value, proof **string) {
	if f.VRF == nil {
		return
	}
	seed := make([]byte, 0, len(pubA)+len(pubB)+len(sid))
	seed = append(seed, pubA...)
	seed = append(seed, pubB...)
	seed = append(seed, sid...)
	valueHex, proofHex, ok := f.VRF.ProveVRF(seed)
	if !ok {
		return
	}
	*value = &valueHex
	*proof = &proofHex
}

// attachResponseVRF binds the response's VRF over the discovery's keys
// too, so the prover's alpha matches vrfInputResponse's verifier-side
// preimage exactly.
func (f *Factory) attachResponseVRF(dPubSig, dPubDH, pubSigResp, pubDHResp, sid []byte, value, proof **string) {
	if f.VRF == nil {
		return
	}
	seed := make([]byte, 0, len(dPubSig)+len(dPubDH)+len(pubSigResp)+len(pubDHResp)+len(sid))
	seed = append(seed, dPubSig...)
	seed = append(seed, dPubDH...)
	seed = append(seed, pubSigResp...)
	seed = append(seed, pubDHResp...)
	seed = append(seed, sid...)
	valueHex, proofHex, ok := f.VRF.ProveVRF(seed)
	if !ok {
		return
	}
	*value = &valueHex
	*proof = &proofHex
}

// SignAnchor signs an anchor's canonical signing preimage with signer
// and returns the lowercase-hex signature. omit names the field(s) to
// drop before canonicalization (the signature field itself);
// excludeMeta additionally drops "meta" (discovery only).
func SignAnchor(signer Signer, anchor interface{}, omit []string, excludeMeta bool) (string, error) {
	start := time.Now()
	sig, err := signAnchor(signer, anchor, omit, excludeMeta)
	elapsed := time.Since(start)

	metrics.GetGlobalCollector().RecordSignature(elapsed)
	metrics.CryptoOperationDuration.WithLabelValues("sign", "secp256k1").Observe(elapsed.Seconds())
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("sign").Inc()
		return "", err
	}
	metrics.CryptoOperations.WithLabelValues("sign", "secp256k1").Inc()
	return sig, nil
}

func signAnchor(signer Signer, anchor interface{}, omit []string, excludeMeta bool) (string, error) {
	m, err := canonical.ToMap(anchor)
	if err != nil {
		return "", fmt.Errorf("wire: sign: %w", err)
	}
	preimage, err := canonical.SigningPreimage(m, omit, excludeMeta)
	if err != nil {
		return "", fmt.Errorf("wire: sign: %w", err)
	}
	sig, err := signer.Sign(preimage)
	if err != nil {
		return "", fmt.Errorf("wire: sign: %w", err)
	}
	return canonical.ToHex(sig), nil
}
