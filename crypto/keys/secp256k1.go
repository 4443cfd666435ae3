// SPDX-License-Identifier: LGPL-3.0-or-later

// Package keys provides secp256k1 identity key pairs and a deterministic
// wallet abstraction, grounded on the teacher's crypto/keys/secp256k1.go
// KeyPair shape. Signatures are ECDSA over secp256k1, matching the wire
// interop requirement in spec §6; the digest is BLAKE2b-256 (not SHA-256
// as in the teacher) to align with the fixed hash primitive the rest of
// the protocol uses.
package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/blake2b"
)

// KeyPair is a secp256k1 signing/ECDH identity key.
type KeyPair struct {
	Private *secp256k1.PrivateKey
	Public  *secp256k1.PublicKey
}

// Generate creates a new random secp256k1 key pair.
func Generate() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("keys: generate: %w", err)
	}
	return &KeyPair{Private: priv, Public: priv.PubKey()}, nil
}

// FromPrivateBytes reconstructs a key pair from a 32-byte scalar.
func FromPrivateBytes(b []byte) (*KeyPair, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("keys: private key must be 32 bytes, got %d", len(b))
	}
	priv := secp256k1.PrivKeyFromBytes(b)
	return &KeyPair{Private: priv, Public: priv.PubKey()}, nil
}

// PublicCompressed returns the 33-byte compressed public key, the wire
// form used by every anchor field (pub_sig, pub_dh, ...).
func (kp *KeyPair) PublicCompressed() []byte {
	return kp.Public.SerializeCompressed()
}

// PublicHex returns the lowercase-hex compressed public key.
func (kp *KeyPair) PublicHex() string {
	return hex.EncodeToString(kp.PublicCompressed())
}

// Sign signs message with ECDSA/secp256k1 over BLAKE2b-256(message).
func (kp *KeyPair) Sign(message []byte) ([]byte, error) {
	hash := blake2b.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, kp.Private.ToECDSA(), hash[:])
	if err != nil {
		return nil, fmt.Errorf("keys: sign: %w", err)
	}
	return serializeSignature(r, s), nil
}

// Verify verifies sig over message against pubCompressed (33-byte
// compressed secp256k1 public key).
func Verify(pubCompressed, message, sig []byte) error {
	pub, err := secp256k1.ParsePubKey(pubCompressed)
	if err != nil {
		return fmt.Errorf("keys: parse public key: %w", err)
	}
	r, s, err := deserializeSignature(sig)
	if err != nil {
		return err
	}
	hash := blake2b.Sum256(message)
	if !ecdsa.Verify(pub.ToECDSA(), hash[:], r, s) {
		return ErrInvalidSignature
	}
	return nil
}

// ECDH performs the raw secp256k1 Diffie-Hellman agreement used by the
// handshake engine: Z = x-coordinate of (myPrivate * peerPublic).
func (kp *KeyPair) ECDH(peerPubCompressed []byte) ([]byte, error) {
	peerPub, err := secp256k1.ParsePubKey(peerPubCompressed)
	if err != nil {
		return nil, fmt.Errorf("keys: parse peer public key: %w", err)
	}
	var result secp256k1.JacobianPoint
	peerPub.AsJacobian(&result)
	var shared secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&kp.Private.Key, &result, &shared)
	shared.ToAffine()
	zBytes := shared.X.Bytes()
	return zBytes[:], nil
}

func serializeSignature(r, s *big.Int) []byte {
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	sig := make([]byte, 64)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	return sig
}

func deserializeSignature(data []byte) (*big.Int, *big.Int, error) {
	if len(data) != 64 {
		return nil, nil, ErrInvalidSignature
	}
	r := new(big.Int).SetBytes(data[:32])
	s := new(big.Int).SetBytes(data[32:])
	return r, s, nil
}
