// SPDX-License-Identifier: LGPL-3.0-or-later

package vrf

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

func TestProveVerifyRoundTrip(t *testing.T) {
	sk, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	beta, pi, err := Prove(sk, []byte("discovery-alpha"))
	require.NoError(t, err)
	require.Len(t, beta, OutputLen)
	require.Len(t, pi, ProofLen)

	verifiedBeta, err := Verify(sk.PubKey(), []byte("discovery-alpha"), pi)
	require.NoError(t, err)
	require.Equal(t, beta, verifiedBeta)
}

func TestVerifyRejectsWrongAlpha(t *testing.T) {
	sk, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	_, pi, err := Prove(sk, []byte("alpha-one"))
	require.NoError(t, err)

	_, err = Verify(sk.PubKey(), []byte("alpha-two"), pi)
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	sk1, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	sk2, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	_, pi, err := Prove(sk1, []byte("alpha"))
	require.NoError(t, err)

	_, err = Verify(sk2.PubKey(), []byte("alpha"), pi)
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestVerifyRejectsTruncatedProof(t *testing.T) {
	sk, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	_, err = Verify(sk.PubKey(), []byte("alpha"), []byte{0x01, 0x02})
	require.Error(t, err)
}

func TestProveIsDeterministicPerKeyAndAlpha(t *testing.T) {
	sk, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	beta1, _, err := Prove(sk, []byte("fixed-alpha"))
	require.NoError(t, err)
	beta2, _, err := Prove(sk, []byte("fixed-alpha"))
	require.NoError(t, err)
	require.Equal(t, beta1, beta2)
}
