// SPDX-License-Identifier: LGPL-3.0-or-later

// Package wire builds the deterministic associated-data used to bind
// AEAD frames to a session and direction, and defines the tagged-variant
// anchor types exchanged over the carrier DAG. AAD construction follows
// the teacher's EncryptWithAAD/DecryptWithAAD split in
// pkg/agent/session/session.go: the AAD is assembled once and handed to
// both Seal and Open unmodified.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Direction is the role-assigned sender of an authenticated message.
type Direction string

const (
	DirectionAtoB Direction = "AtoB"
	DirectionBtoA Direction = "BtoA"
)

// Opposite returns the direction a party never sends but always
// receives; session.Context uses it to name the direction of inbound
// frames. The reflection check itself (message.Codec rejecting a frame
// in its own LocalOutDir) compares directions directly, without Opposite.
func (d Direction) Opposite() Direction {
	if d == DirectionAtoB {
		return DirectionBtoA
	}
	return DirectionAtoB
}

func (d Direction) Valid() bool {
	return d == DirectionAtoB || d == DirectionBtoA
}

// AADLen is the fixed length of the associated data bound to every
// message frame: 32-byte mailbox id || 4-byte direction || 8-byte
// big-endian sequence.
const AADLen = 32 + 4 + 8

// BuildAAD constructs the 44-byte AAD for one frame. mailboxID must be
// exactly 32 bytes.
func BuildAAD(mailboxID []byte, dir Direction, seq uint64) ([]byte, error) {
	if len(mailboxID) != 32 {
		return nil, fmt.Errorf("wire: mailbox id must be 32 bytes, got %d", len(mailboxID))
	}
	if !dir.Valid() {
		return nil, fmt.Errorf("wire: invalid direction %q", dir)
	}

	aad := make([]byte, AADLen)
	copy(aad[0:32], mailboxID)
	copy(aad[32:36], []byte(dir))
	binary.BigEndian.PutUint64(aad[36:44], seq)
	return aad, nil
}

// GroupAADLen is the fixed length of the associated data bound to every
// lobby group message: 32-byte group mailbox id || 4-byte big-endian
// key version.
const GroupAADLen = 32 + 4

// BuildGroupAAD constructs the 36-byte AAD for one group message frame
// (spec §4.10: "AAD = group_mailbox_id_bytes || key_version_u32_be").
func BuildGroupAAD(groupMailboxID []byte, keyVersion uint32) ([]byte, error) {
	if len(groupMailboxID) != 32 {
		return nil, fmt.Errorf("wire: group mailbox id must be 32 bytes, got %d", len(groupMailboxID))
	}
	aad := make([]byte, GroupAADLen)
	copy(aad[0:32], groupMailboxID)
	binary.BigEndian.PutUint32(aad[32:36], keyVersion)
	return aad, nil
}
