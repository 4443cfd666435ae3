// SPDX-License-Identifier: LGPL-3.0-or-later

// Package handshake verifies a discovery/response anchor pair and
// derives the pairwise session key and mailbox ID, following the
// key-echo/signature/VRF/ECDH/HKDF pipeline of spec §4.5. The session
// key derivation is adapted from the teacher's directional HKDF key
// split in pkg/agent/session/session.go, generalized from HMAC-SHA256
// to HKDF-BLAKE2b per the fixed wire primitives.
package handshake

import (
	"errors"
	"fmt"
	"hash"
	"io"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/crypto/keys"
	"github.com/kktp-network/kktp/internal/metrics"
	"github.com/kktp-network/kktp/wire"
)

var (
	ErrKeyEchoMismatch     = errors.New("handshake: response does not echo discovery keys")
	ErrSignatureInvalid    = errors.New("handshake: signature verification failed")
	ErrVrfMismatch         = errors.New("handshake: vrf verification failed")
	ErrVrfPairInconsistent = errors.New("handshake: vrf value and proof must be both present or both absent")
)

// VRFVerifier is the collaborator contract for VRF verification,
// implemented by crypto/vrf.
type VRFVerifier interface {
	VerifyVRF(pubSigCompressed []byte, input []byte, valueHex, proofHex string) error
}

// Result is the output of a successful handshake: the derived session
// key and mailbox ID, ready for installation into a session context.
type Result struct {
	SessionKey [32]byte
	MailboxID  [32]byte
}

// Engine runs handshake verification against a pluggable VRF verifier.
type Engine struct {
	VRF VRFVerifier // nil disables VRF checks; both anchors must then carry null vrf_* fields
}

// NewEngine builds a handshake Engine. verifier may be nil if the
// deployment disables VRF bindings entirely.
func NewEngine(verifier VRFVerifier) *Engine {
	return &Engine{VRF: verifier}
}

// Run verifies discovery D and response R and derives the session
// key/mailbox ID. myDHPrivate is the local party's DH key pair; the
// caller determines peer DH public key orientation via isInitiator.
func (e *Engine) Run(d *wire.Discovery, r *wire.Response, myDHPrivate *keys.KeyPair, isInitiator bool) (*Result, error) {
	role := "responder"
	if isInitiator {
		role = "initiator"
	}
	metrics.HandshakesInitiated.WithLabelValues(role).Inc()
	start := time.Now()

	result, err := e.run(d, r, myDHPrivate, isInitiator)

	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = "failure"
		metrics.HandshakesFailed.WithLabelValues(handshakeErrorType(err)).Inc()
	}
	metrics.HandshakesCompleted.WithLabelValues(status).Inc()
	metrics.HandshakeDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	return result, err
}

func handshakeErrorType(err error) string {
	switch {
	case errors.Is(err, ErrSignatureInvalid):
		return "signature"
	case errors.Is(err, ErrVrfMismatch), errors.Is(err, ErrVrfPairInconsistent):
		return "vrf"
	case errors.Is(err, ErrKeyEchoMismatch):
		return "key_echo"
	default:
		return "other"
	}
}

func (e *Engine) run(d *wire.Discovery, r *wire.Response, myDHPrivate *keys.KeyPair, isInitiator bool) (*Result, error) {
	if err := e.verifyKeyEcho(d, r); err != nil {
		return nil, err
	}
	if err := e.verifySignatures(d, r); err != nil {
		return nil, err
	}
	if err := e.verifyVRF(d, r); err != nil {
		return nil, err
	}

	peerDHHex := r.PubDHResp
	if !isInitiator {
		peerDHHex = d.PubDH
	}
	peerDH, err := canonical.FromHexLen(peerDHHex, 33)
	if err != nil {
		return nil, fmt.Errorf("handshake: peer dh key: %w", err)
	}

	z, err := myDHPrivate.ECDH(peerDH)
	if err != nil {
		return nil, fmt.Errorf("handshake: ecdh: %w", err)
	}

	sidBytes, err := canonical.FromHexLen(d.SID, 32)
	if err != nil {
		return nil, fmt.Errorf("handshake: sid: %w", err)
	}
	pubSigA, err := canonical.FromHexLen(d.PubSig, 33)
	if err != nil {
		return nil, fmt.Errorf("handshake: discovery pub_sig: %w", err)
	}
	pubSigB, err := canonical.FromHexLen(r.PubSigResp, 33)
	if err != nil {
		return nil, fmt.Errorf("handshake: response pub_sig_resp: %w", err)
	}

	sessionKey, err := deriveSessionKey(sidBytes, z, pubSigA, pubSigB)
	if err != nil {
		return nil, err
	}
	mailboxID := deriveMailboxID(pubSigA, pubSigB, sidBytes)

	return &Result{SessionKey: sessionKey, MailboxID: mailboxID}, nil
}

func (e *Engine) verifyKeyEcho(d *wire.Discovery, r *wire.Response) error {
	if r.InitiatorPubSig != d.PubSig || r.InitiatorPubDH != d.PubDH {
		return ErrKeyEchoMismatch
	}
	return nil
}

func (e *Engine) verifySignatures(d *wire.Discovery, r *wire.Response) error {
	if err := verifyAnchorSignature(d, d.PubSig, d.Sig, []string{"sig"}, true); err != nil {
		return err
	}
	if err := verifyAnchorSignature(r, r.PubSigResp, r.SigResp, []string{"sig_resp"}, false); err != nil {
		return err
	}
	return nil
}

func verifyAnchorSignature(anchor interface{}, pubSigHex, sigHex string, omit []string, excludeMeta bool) error {
	start := time.Now()
	err := verifyAnchorSignatureOnce(anchor, pubSigHex, sigHex, omit, excludeMeta)
	elapsed := time.Since(start)

	metrics.GetGlobalCollector().RecordVerification(err == nil, elapsed)
	metrics.CryptoOperationDuration.WithLabelValues("verify", "secp256k1").Observe(elapsed.Seconds())
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return err
	}
	metrics.CryptoOperations.WithLabelValues("verify", "secp256k1").Inc()
	return nil
}

func verifyAnchorSignatureOnce(anchor interface{}, pubSigHex, sigHex string, omit []string, excludeMeta bool) error {
	pubSig, err := canonical.FromHexLen(pubSigHex, 33)
	if err != nil {
		return fmt.Errorf("handshake: %w: %v", ErrSignatureInvalid, err)
	}
	sig, err := canonical.FromHex(sigHex)
	if err != nil {
		return fmt.Errorf("handshake: %w: %v", ErrSignatureInvalid, err)
	}
	m, err := canonical.ToMap(anchor)
	if err != nil {
		return fmt.Errorf("handshake: %w: %v", ErrSignatureInvalid, err)
	}
	preimage, err := canonical.SigningPreimage(m, omit, excludeMeta)
	if err != nil {
		return fmt.Errorf("handshake: %w: %v", ErrSignatureInvalid, err)
	}
	if err := keys.Verify(pubSig, preimage, sig); err != nil {
		return fmt.Errorf("%w", ErrSignatureInvalid)
	}
	return nil
}

func (e *Engine) verifyVRF(d *wire.Discovery, r *wire.Response) error {
	dPresent := d.VrfValue != nil
	if dPresent != (d.VrfProof != nil) {
		return ErrVrfPairInconsistent
	}
	rPresent := r.VrfValue != nil
	if rPresent != (r.VrfProof != nil) {
		return ErrVrfPairInconsistent
	}

	if dPresent {
		if e.VRF == nil {
			return ErrVrfMismatch
		}
		pubSig, err := canonical.FromHexLen(d.PubSig, 33)
		if err != nil {
			return fmt.Errorf("handshake: %w: %v", ErrVrfMismatch, err)
		}
		input, err := vrfInputDiscovery(d)
		if err != nil {
			return err
		}
		if err := e.VRF.VerifyVRF(pubSig, input, *d.VrfValue, *d.VrfProof); err != nil {
			return fmt.Errorf("%w", ErrVrfMismatch)
		}
	}

	if rPresent {
		if e.VRF == nil {
			return ErrVrfMismatch
		}
		pubSig, err := canonical.FromHexLen(r.PubSigResp, 33)
		if err != nil {
			return fmt.Errorf("handshake: %w: %v", ErrVrfMismatch, err)
		}
		input, err := vrfInputResponse(d, r)
		if err != nil {
			return err
		}
		if err := e.VRF.VerifyVRF(pubSig, input, *r.VrfValue, *r.VrfProof); err != nil {
			return fmt.Errorf("%w", ErrVrfMismatch)
		}
	}

	return nil
}

// vrfInputDiscovery builds H = BLAKE2b-256(pub_sig || pub_dh || sid) as
// raw concatenated bytes, never hex string concatenation, per spec §4.5
// step 3 and the defense noted in §9.
func vrfInputDiscovery(d *wire.Discovery) ([]byte, error) {
	pubSig, err := canonical.FromHexLen(d.PubSig, 33)
	if err != nil {
		return nil, err
	}
	pubDH, err := canonical.FromHexLen(d.PubDH, 33)
	if err != nil {
		return nil, err
	}
	sid, err := canonical.FromHexLen(d.SID, 32)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(pubSig)+len(pubDH)+len(sid))
	buf = append(buf, pubSig...)
	buf = append(buf, pubDH...)
	buf = append(buf, sid...)
	return buf, nil
}

// vrfInputResponse builds H' = BLAKE2b-256(D.pub_sig || D.pub_dh ||
// R.pub_sig_resp || R.pub_dh_resp || D.sid).
func vrfInputResponse(d *wire.Discovery, r *wire.Response) ([]byte, error) {
	dPubSig, err := canonical.FromHexLen(d.PubSig, 33)
	if err != nil {
		return nil, err
	}
	dPubDH, err := canonical.FromHexLen(d.PubDH, 33)
	if err != nil {
		return nil, err
	}
	rPubSig, err := canonical.FromHexLen(r.PubSigResp, 33)
	if err != nil {
		return nil, err
	}
	rPubDH, err := canonical.FromHexLen(r.PubDHResp, 33)
	if err != nil {
		return nil, err
	}
	sid, err := canonical.FromHexLen(d.SID, 32)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(dPubSig)+len(dPubDH)+len(rPubSig)+len(rPubDH)+len(sid))
	buf = append(buf, dPubSig...)
	buf = append(buf, dPubDH...)
	buf = append(buf, rPubSig...)
	buf = append(buf, rPubDH...)
	buf = append(buf, sid...)
	return buf, nil
}

func blake2bNew() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}

func deriveSessionKey(sid, z, pubSigA, pubSigB []byte) ([32]byte, error) {
	var out [32]byte
	info := make([]byte, 0, len(pubSigA)+len(pubSigB))
	info = append(info, pubSigA...)
	info = append(info, pubSigB...)

	r := hkdf.New(blake2bNew, z, sid, info)
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, fmt.Errorf("handshake: hkdf: %w", err)
	}
	return out, nil
}

func deriveMailboxID(pubSigA, pubSigB, sid []byte) [32]byte {
	buf := make([]byte, 0, len(pubSigA)+len(pubSigB)+len(sid))
	buf = append(buf, pubSigA...)
	buf = append(buf, pubSigB...)
	buf = append(buf, sid...)
	return blake2b.Sum256(buf)
}
