// SPDX-License-Identifier: LGPL-3.0-or-later

package vrf

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/kktp-network/kktp/canonical"
)

// Prover adapts a secp256k1 private key to the wire.VRFProver contract
// consumed by the anchor factory.
type Prover struct {
	sk *secp256k1.PrivateKey
}

// NewProver wraps sk for use as an anchor factory VRF source.
func NewProver(sk *secp256k1.PrivateKey) *Prover {
	return &Prover{sk: sk}
}

// ProveVRF computes a proof over seedInput, returning lowercase-hex
// value/proof. ok is false only if hash-to-curve exhausts its retry
// budget, which for a 256-bit hash space is not expected in practice.
func (p *Prover) ProveVRF(seedInput []byte) (valueHex string, proofHex string, ok bool) {
	beta, pi, err := Prove(p.sk, seedInput)
	if err != nil {
		return "", "", false
	}
	return canonical.ToHex(beta), canonical.ToHex(pi), true
}
