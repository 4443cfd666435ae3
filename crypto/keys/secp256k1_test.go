// SPDX-License-Identifier: LGPL-3.0-or-later

package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndRoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	require.Len(t, kp.PublicCompressed(), 33)

	message := []byte("kktp handshake test message")
	sig, err := kp.Sign(message)
	require.NoError(t, err)
	require.Len(t, sig, 64)

	require.NoError(t, Verify(kp.PublicCompressed(), message, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	sig, err := kp.Sign([]byte("original"))
	require.NoError(t, err)

	err = Verify(kp.PublicCompressed(), []byte("tampered"), sig)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	kp1, err := Generate()
	require.NoError(t, err)
	kp2, err := Generate()
	require.NoError(t, err)

	sig, err := kp1.Sign([]byte("message"))
	require.NoError(t, err)

	err = Verify(kp2.PublicCompressed(), []byte("message"), sig)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestFromPrivateBytesDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	kp1, err := FromPrivateBytes(seed)
	require.NoError(t, err)
	kp2, err := FromPrivateBytes(seed)
	require.NoError(t, err)
	require.Equal(t, kp1.PublicHex(), kp2.PublicHex())
}

func TestECDHAgreement(t *testing.T) {
	alice, err := Generate()
	require.NoError(t, err)
	bob, err := Generate()
	require.NoError(t, err)

	aliceShared, err := alice.ECDH(bob.PublicCompressed())
	require.NoError(t, err)
	bobShared, err := bob.ECDH(alice.PublicCompressed())
	require.NoError(t, err)

	require.Equal(t, aliceShared, bobShared)
}

func TestMemoryWalletIsDeterministic(t *testing.T) {
	w := NewMemoryWallet([]byte("test seed material"))

	kp1, err := w.Derive("identity", 0)
	require.NoError(t, err)
	kp2, err := w.Derive("identity", 0)
	require.NoError(t, err)
	require.Equal(t, kp1.PublicHex(), kp2.PublicHex())

	kp3, err := w.Derive("identity", 1)
	require.NoError(t, err)
	require.NotEqual(t, kp1.PublicHex(), kp3.PublicHex())

	kp4, err := w.Derive("dh", 0)
	require.NoError(t, err)
	require.NotEqual(t, kp1.PublicHex(), kp4.PublicHex())
}
