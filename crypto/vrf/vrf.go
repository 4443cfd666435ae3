// SPDX-License-Identifier: LGPL-3.0-or-later

// Package vrf implements a verifiable random function over secp256k1,
// modeled on RFC 9381's ECVRF-EDWARDS25519-SHA512-TAI construction but
// adapted to the secp256k1 group and BLAKE2b-256 hash already used
// throughout KKTP. No VRF library appears anywhere in the retrieval
// pack, so this is hand-written directly on top of the curve group
// operations the teacher's secp256k1 dependency already exposes
// (ScalarMultNonConst, ScalarBaseMultNonConst, AddNonConst) rather than
// pulling in an unrelated, unseen dependency.
//
// Proof layout (81 bytes): Gamma (33-byte compressed point) || c (16
// bytes) || s (32 bytes).
package vrf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/blake2b"
)

const (
	// ProofLen is the fixed encoded length of a VRF proof.
	ProofLen = 33 + 16 + 32
	// OutputLen is the length of the VRF output (beta).
	OutputLen = 32

	maxHashToCurveTries = 256
)

// ErrInvalidProof is returned by Verify when the proof does not check
// against the supplied public key and input.
var ErrInvalidProof = errors.New("vrf: invalid proof")

// ErrHashToCurveFailed is returned when the try-and-increment
// hash-to-curve procedure exhausts its attempt budget.
var ErrHashToCurveFailed = errors.New("vrf: hash-to-curve failed to find a valid point")

// Prove computes a VRF proof and output for alpha under the given
// secp256k1 private key. beta is deterministic in (sk, alpha); pi lets
// any holder of the corresponding public key verify beta was derived
// honestly without learning sk.
func Prove(sk *secp256k1.PrivateKey, alpha []byte) (beta []byte, pi []byte, err error) {
	pk := sk.PubKey().SerializeCompressed()

	h, err := hashToCurve(pk, alpha)
	if err != nil {
		return nil, nil, err
	}

	var hJacobian secp256k1.JacobianPoint
	h.AsJacobian(&hJacobian)

	var gamma secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&sk.Key, &hJacobian, &gamma)
	gamma.ToAffine()
	gammaPub := secp256k1.NewPublicKey(&gamma.X, &gamma.Y)

	k := deterministicNonce(sk, h, alpha)

	var kG, kH secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&k, &kG)
	secp256k1.ScalarMultNonConst(&k, &hJacobian, &kH)
	kG.ToAffine()
	kH.ToAffine()

	c := challengeScalar(h, gammaPub,
		secp256k1.NewPublicKey(&kG.X, &kG.Y),
		secp256k1.NewPublicKey(&kH.X, &kH.Y))

	var cs secp256k1.ModNScalar
	cs.Mul2(&c, &sk.Key)
	s := new(secp256k1.ModNScalar).Add2(&k, &cs)

	pi = encodeProof(gammaPub, &c, s)
	beta = proofToHash(gammaPub)
	return beta, pi, nil
}

// Verify checks that pi is a valid VRF proof for alpha under pubKey,
// and returns the verified output beta.
func Verify(pubKey *secp256k1.PublicKey, alpha []byte, pi []byte) (beta []byte, err error) {
	gammaPub, c, s, err := decodeProof(pi)
	if err != nil {
		return nil, err
	}

	h, err := hashToCurve(pubKey.SerializeCompressed(), alpha)
	if err != nil {
		return nil, err
	}
	var hJacobian secp256k1.JacobianPoint
	h.AsJacobian(&hJacobian)

	var yJacobian secp256k1.JacobianPoint
	pubKey.AsJacobian(&yJacobian)

	var gammaJacobian secp256k1.JacobianPoint
	gammaPub.AsJacobian(&gammaJacobian)

	// U = s*G - c*Y
	var sG, cY, negCY, u secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(s, &sG)
	secp256k1.ScalarMultNonConst(c, &yJacobian, &cY)
	negateJacobian(&cY, &negCY)
	secp256k1.AddNonConst(&sG, &negCY, &u)
	u.ToAffine()

	// V = s*H - c*Gamma
	var sH, cGamma, negCGamma, v secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(s, &hJacobian, &sH)
	secp256k1.ScalarMultNonConst(c, &gammaJacobian, &cGamma)
	negateJacobian(&cGamma, &negCGamma)
	secp256k1.AddNonConst(&sH, &negCGamma, &v)
	v.ToAffine()

	cPrime := challengeScalar(h, gammaPub,
		secp256k1.NewPublicKey(&u.X, &u.Y),
		secp256k1.NewPublicKey(&v.X, &v.Y))

	if !c.Equals(&cPrime) {
		return nil, ErrInvalidProof
	}
	return proofToHash(gammaPub), nil
}

func negateJacobian(p, out *secp256k1.JacobianPoint) {
	*out = *p
	out.Y.Negate(1)
	out.Y.Normalize()
}

// hashToCurve maps (pk, alpha) onto the curve by try-and-increment over
// BLAKE2b-256 candidate x-coordinates.
func hashToCurve(pk, alpha []byte) (*secp256k1.PublicKey, error) {
	for ctr := 0; ctr < maxHashToCurveTries; ctr++ {
		buf := bytes.Buffer{}
		buf.WriteByte(0x01)
		buf.Write(pk)
		buf.Write(alpha)
		buf.WriteByte(byte(ctr))
		digest := blake2b.Sum256(buf.Bytes())

		candidate := make([]byte, 33)
		candidate[0] = 0x02
		copy(candidate[1:], digest[:])
		if pub, err := secp256k1.ParsePubKey(candidate); err == nil {
			return pub, nil
		}
	}
	return nil, ErrHashToCurveFailed
}

func deterministicNonce(sk *secp256k1.PrivateKey, h *secp256k1.PublicKey, alpha []byte) secp256k1.ModNScalar {
	skBytes := sk.Serialize()
	buf := bytes.Buffer{}
	buf.WriteByte(0x02)
	buf.Write(skBytes)
	buf.Write(h.SerializeCompressed())
	buf.Write(alpha)
	digest := blake2b.Sum256(buf.Bytes())
	var k secp256k1.ModNScalar
	k.SetByteSlice(digest[:])
	return k
}

func challengeScalar(points ...*secp256k1.PublicKey) secp256k1.ModNScalar {
	buf := bytes.Buffer{}
	buf.WriteByte(0x02)
	for _, p := range points {
		buf.Write(p.SerializeCompressed())
	}
	digest := blake2b.Sum256(buf.Bytes())

	var c secp256k1.ModNScalar
	c.SetByteSlice(digest[:16])
	return c
}

func proofToHash(gamma *secp256k1.PublicKey) []byte {
	digest := blake2b.Sum256(append([]byte{0x03}, gamma.SerializeCompressed()...))
	return digest[:]
}

func encodeProof(gamma *secp256k1.PublicKey, c *secp256k1.ModNScalar, s *secp256k1.ModNScalar) []byte {
	out := make([]byte, ProofLen)
	copy(out[:33], gamma.SerializeCompressed())
	cBytes := c.Bytes()
	copy(out[33:49], cBytes[16:])
	sBytes := s.Bytes()
	copy(out[49:], sBytes[:])
	return out
}

func decodeProof(pi []byte) (*secp256k1.PublicKey, *secp256k1.ModNScalar, *secp256k1.ModNScalar, error) {
	if len(pi) != ProofLen {
		return nil, nil, nil, fmt.Errorf("vrf: proof must be %d bytes, got %d: %w", ProofLen, len(pi), ErrInvalidProof)
	}
	gamma, err := secp256k1.ParsePubKey(pi[:33])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("vrf: invalid gamma point: %w", err)
	}
	var c secp256k1.ModNScalar
	cFull := make([]byte, 32)
	copy(cFull[16:], pi[33:49])
	c.SetByteSlice(cFull)

	var s secp256k1.ModNScalar
	s.SetByteSlice(pi[49:81])

	return gamma, &c, &s, nil
}
