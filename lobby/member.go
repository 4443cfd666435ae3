// SPDX-License-Identifier: LGPL-3.0-or-later

package lobby

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/crypto/keys"
	"github.com/kktp-network/kktp/session"
	"github.com/kktp-network/kktp/transport"
	"github.com/kktp-network/kktp/wire"
)

// Member runs the joining side of one lobby: it sends the join
// request, tracks the group mailbox and key ring the host hands back,
// and decrypts group messages as the key rotates.
type Member struct {
	Identity    *keys.KeyPair
	DisplayName string
	HostSession *session.Context

	GroupMailboxID [32]byte
	Ring           *KeyRing
	GroupCodec     *GroupCodec

	dmBuffer *DMBuffer
	joined   bool
}

// NewMember builds a Member bound to an already-ACTIVE pairwise session
// with the host. The lobby's group mailbox/key ring are populated once
// the host's join response arrives (see HandleHostDM).
func NewMember(identity *keys.KeyPair, displayName string, hostSession *session.Context) *Member {
	return &Member{
		Identity:    identity,
		DisplayName: displayName,
		HostSession: hostSession,
		dmBuffer:    NewDMBuffer(0),
	}
}

// Join sends a lobby_join_request over the pairwise session with the
// host.
func (m *Member) Join(ctx context.Context, net transport.Network) error {
	req := JoinRequest{Type: TypeJoinRequest, DisplayName: m.DisplayName}
	plaintext, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("lobby: marshal join request: %w", err)
	}
	codec := m.HostSession.Codec()
	if codec == nil {
		return fmt.Errorf("lobby: join: host session has no key material")
	}
	frame, err := codec.Pack(plaintext, m.HostSession.NextOutboundSeq())
	if err != nil {
		return fmt.Errorf("lobby: pack join request: %w", err)
	}
	mailboxHex := canonical.ToHex(m.HostSession.MailboxID[:])
	_, err = net.Publish(ctx, wire.EncodeMessagePayload(mailboxHex, frame))
	return err
}

// HandleHostDM dispatches one decrypted plaintext arriving over the
// pairwise session with the host: a join response, a member event, or a
// key rotation. Unrecognized types are ignored.
func (m *Member) HandleHostDM(plaintext []byte) error {
	var probe dmType
	if err := json.Unmarshal(plaintext, &probe); err != nil {
		return fmt.Errorf("lobby: decode dm: %w", err)
	}

	switch probe.Type {
	case TypeJoinResponse:
		var resp JoinResponse
		if err := json.Unmarshal(plaintext, &resp); err != nil {
			return fmt.Errorf("lobby: decode join response: %w", err)
		}
		if !resp.Accepted {
			return fmt.Errorf("lobby: join rejected: %s", resp.Reason)
		}
		mailboxID, err := canonical.FromHexLen(resp.GroupMailboxID, 32)
		if err != nil {
			return fmt.Errorf("lobby: join response: %w", err)
		}
		key, err := canonical.FromHexLen(resp.GroupKey, 32)
		if err != nil {
			return fmt.Errorf("lobby: join response: %w", err)
		}
		copy(m.GroupMailboxID[:], mailboxID)
		var k [32]byte
		copy(k[:], key)
		m.Ring = NewKeyRing(resp.KeyVersion, k)
		m.GroupCodec = NewGroupCodec(m.GroupMailboxID, m.Identity.PublicCompressed())
		m.joined = true
		return nil

	case TypeKeyRotation:
		var rot KeyRotation
		if err := json.Unmarshal(plaintext, &rot); err != nil {
			return fmt.Errorf("lobby: decode key rotation: %w", err)
		}
		key, err := canonical.FromHexLen(rot.GroupKey, 32)
		if err != nil {
			return fmt.Errorf("lobby: key rotation: %w", err)
		}
		var k [32]byte
		copy(k[:], key)
		if m.Ring == nil {
			m.Ring = NewKeyRing(rot.KeyVersion, k)
			return nil
		}
		m.Ring.Add(rot.KeyVersion, k)
		return nil

	case TypeMemberEvent:
		// Roster visibility only; membership itself is host-owned.
		return nil

	default:
		return nil
	}
}

// BufferHostDM queues a raw carrier payload addressed to this member's
// host mailbox, for use while the pairwise session with the host is not
// yet ACTIVE (spec §4.10: "held in an ordered per-mailbox buffer and
// drained on session ready").
func (m *Member) BufferHostDM(mailboxHex, payload string) {
	m.dmBuffer.Add(mailboxHex, payload)
}

// DrainHostDMs returns and clears every payload buffered for
// mailboxHex, in arrival order.
func (m *Member) DrainHostDMs(mailboxHex string) []string {
	return m.dmBuffer.Drain(mailboxHex)
}

// EncryptGroupMessage encrypts plaintext under this member's current
// (highest-known) group key version.
func (m *Member) EncryptGroupMessage(plaintext []byte) ([]byte, error) {
	if m.Ring == nil {
		return nil, fmt.Errorf("lobby: encrypt group message: not joined")
	}
	version, key := m.Ring.Current()
	return m.GroupCodec.Pack(plaintext, version, key)
}

// DecryptGroupMessage decrypts a group_message anchor using whichever
// key version in this member's ring matches. Returns
// ErrKeyVersionUnknown if the member never held that version (e.g. it
// was kicked before this rotation).
func (m *Member) DecryptGroupMessage(gm *wire.GroupMessage) ([]byte, error) {
	if m.Ring == nil {
		return nil, fmt.Errorf("lobby: decrypt group message: not joined")
	}
	return m.GroupCodec.Unpack(gm, m.Ring)
}
