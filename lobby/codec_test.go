// SPDX-License-Identifier: LGPL-3.0-or-later

package lobby

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/crypto/keys"
	"github.com/kktp-network/kktp/wire"
)

func TestGroupCodecRoundTrip(t *testing.T) {
	var groupMailboxID [32]byte
	groupMailboxID[0] = 0xAB
	sender, err := keys.Generate()
	require.NoError(t, err)

	codec := NewGroupCodec(groupMailboxID, sender.PublicCompressed())

	var key [32]byte
	key[0] = 0x42
	ring := NewKeyRing(1, key)

	frame, err := codec.Pack([]byte("hello lobby"), 1, key)
	require.NoError(t, err)

	var gm wire.GroupMessage
	require.NoError(t, json.Unmarshal(frame, &gm))
	require.Equal(t, "group_message", gm.Type)
	require.Equal(t, uint32(1), gm.KeyVersion)
	require.Equal(t, canonical.ToHex(groupMailboxID[:]), gm.GroupMailboxID)

	plaintext, err := codec.Unpack(&gm, ring)
	require.NoError(t, err)
	require.Equal(t, "hello lobby", string(plaintext))
}

func TestGroupCodecUnknownVersionFails(t *testing.T) {
	var groupMailboxID [32]byte
	groupMailboxID[0] = 0xAB
	sender, err := keys.Generate()
	require.NoError(t, err)
	codec := NewGroupCodec(groupMailboxID, sender.PublicCompressed())

	var key1, key2 [32]byte
	key1[0], key2[0] = 1, 2
	ring := NewKeyRing(1, key1)

	frame, err := codec.Pack([]byte("v2 only"), 2, key2)
	require.NoError(t, err)
	var gm wire.GroupMessage
	require.NoError(t, json.Unmarshal(frame, &gm))

	_, err = codec.Unpack(&gm, ring)
	require.ErrorIs(t, err, ErrKeyVersionUnknown)
}

func TestGroupCodecRejectsMismatchedMailbox(t *testing.T) {
	var mbA, mbB [32]byte
	mbA[0], mbB[0] = 0xAA, 0xBB
	sender, err := keys.Generate()
	require.NoError(t, err)

	packCodec := NewGroupCodec(mbA, sender.PublicCompressed())
	unpackCodec := NewGroupCodec(mbB, sender.PublicCompressed())

	var key [32]byte
	key[0] = 7
	ring := NewKeyRing(1, key)

	frame, err := packCodec.Pack([]byte("hi"), 1, key)
	require.NoError(t, err)
	var gm wire.GroupMessage
	require.NoError(t, json.Unmarshal(frame, &gm))

	_, err = unpackCodec.Unpack(&gm, ring)
	require.Error(t, err)
}
