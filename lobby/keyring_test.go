// SPDX-License-Identifier: LGPL-3.0-or-later

package lobby

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyRingCurrentAndLookup(t *testing.T) {
	var k1 [32]byte
	k1[0] = 1
	ring := NewKeyRing(1, k1)

	version, key := ring.Current()
	require.Equal(t, uint32(1), version)
	require.Equal(t, k1, key)

	got, err := ring.Lookup(1)
	require.NoError(t, err)
	require.Equal(t, k1, got)

	_, err = ring.Lookup(2)
	require.ErrorIs(t, err, ErrKeyVersionUnknown)
}

func TestKeyRingAddAdvancesCurrent(t *testing.T) {
	var k1, k2 [32]byte
	k1[0], k2[0] = 1, 2
	ring := NewKeyRing(1, k1)

	ring.Add(2, k2)
	version, key := ring.Current()
	require.Equal(t, uint32(2), version)
	require.Equal(t, k2, key)

	// Old version still retrievable.
	got, err := ring.Lookup(1)
	require.NoError(t, err)
	require.Equal(t, k1, got)

	require.Equal(t, []uint32{1, 2}, ring.Versions())
}

func TestKeyRingAddOutOfOrderDoesNotRegressCurrent(t *testing.T) {
	var k1, k3 [32]byte
	k1[0], k3[0] = 1, 3
	ring := NewKeyRing(3, k3)

	// An older version arriving late (reordered DM) must not move current backward.
	ring.Add(1, k1)
	version, _ := ring.Current()
	require.Equal(t, uint32(3), version)
	require.Equal(t, []uint32{1, 3}, ring.Versions())
}

func TestKeyRingRetire(t *testing.T) {
	var k1, k2 [32]byte
	k1[0], k2[0] = 1, 2
	ring := NewKeyRing(1, k1)
	ring.Add(2, k2)

	ring.Retire(1)
	_, err := ring.Lookup(1)
	require.ErrorIs(t, err, ErrKeyVersionUnknown)
	require.Equal(t, []uint32{2}, ring.Versions())
}
