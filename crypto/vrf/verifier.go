// SPDX-License-Identifier: LGPL-3.0-or-later

package vrf

import (
	"bytes"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/kktp-network/kktp/canonical"
)

// Verifier adapts package-level Verify to the handshake.VRFVerifier
// contract: parse hex fields, verify the proof, and check the output
// matches the claimed value.
type Verifier struct{}

// NewVerifier builds a stateless VRF verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifyVRF checks that proofHex is a valid VRF proof over input under
// pubSigCompressed, and that it produces the claimed valueHex output.
func (Verifier) VerifyVRF(pubSigCompressed, input []byte, valueHex, proofHex string) error {
	pub, err := secp256k1.ParsePubKey(pubSigCompressed)
	if err != nil {
		return fmt.Errorf("vrf: parse public key: %w", err)
	}
	claimedValue, err := canonical.FromHexLen(valueHex, OutputLen)
	if err != nil {
		return fmt.Errorf("vrf: parse value: %w", err)
	}
	proof, err := canonical.FromHexLen(proofHex, ProofLen)
	if err != nil {
		return fmt.Errorf("vrf: parse proof: %w", err)
	}

	beta, err := Verify(pub, input, proof)
	if err != nil {
		return err
	}
	if !bytes.Equal(beta, claimedValue) {
		return ErrInvalidProof
	}
	return nil
}
