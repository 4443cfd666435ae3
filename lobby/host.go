// SPDX-License-Identifier: LGPL-3.0-or-later

package lobby

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/crypto/keys"
	"github.com/kktp-network/kktp/internal/metrics"
	"github.com/kktp-network/kktp/session"
	"github.com/kktp-network/kktp/transport"
	"github.com/kktp-network/kktp/wire"
)

// DefaultRotationInterval is the host's scheduled key-rotation period
// absent an explicit kick (spec §4.10: "On kick or timer (default 10
// minutes)").
const DefaultRotationInterval = 10 * time.Minute

// rosterMember is the host's bookkeeping for one joined member: its
// display name and the pairwise session carrying its DMs.
type rosterMember struct {
	displayName string
	joinedAt    time.Time
	session     *session.Context
}

// Host runs the host side of one lobby: roster management, group key
// rotation, and DM distribution over each member's pairwise session
// (spec §4.10).
type Host struct {
	mu sync.Mutex

	Net            transport.Network
	Identity       *keys.KeyPair
	LobbyName      string
	MaxMembers     int
	GroupMailboxID [32]byte
	GroupCodec     *GroupCodec

	ring    *KeyRing
	members map[string]*rosterMember // pubSigHex -> member
}

// NewHost builds a Host with a fresh group mailbox id and an initial
// (version 1) group key.
func NewHost(net transport.Network, identity *keys.KeyPair, lobbyName string, maxMembers int) (*Host, error) {
	var groupMailboxID, key [32]byte
	if _, err := io.ReadFull(rand.Reader, groupMailboxID[:]); err != nil {
		return nil, fmt.Errorf("lobby: new host: group mailbox id: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, fmt.Errorf("lobby: new host: group key: %w", err)
	}

	return &Host{
		Net:            net,
		Identity:       identity,
		LobbyName:      lobbyName,
		MaxMembers:     maxMembers,
		GroupMailboxID: groupMailboxID,
		GroupCodec:     NewGroupCodec(groupMailboxID, identity.PublicCompressed()),
		ring:           NewKeyRing(1, key),
		members:        make(map[string]*rosterMember),
	}, nil
}

// DiscoveryMeta builds the meta object a discovery anchor should carry
// to advertise this lobby (spec §4.10: "host publishes discovery with
// meta.lobby=true plus lobby_name and max_members"). The factory never
// signs meta for discovery anchors, so this can be attached any time
// before publish.
func (h *Host) DiscoveryMeta() map[string]interface{} {
	return map[string]interface{}{
		"lobby":       true,
		"lobby_name":  h.LobbyName,
		"max_members": h.MaxMembers,
	}
}

// HandleJoinRequest processes a lobby_join_request arriving over a
// now-ACTIVE pairwise session with the host: registers the member if
// room remains, replies with a join response over that same session,
// and broadcasts a member_event to everyone else already on the roster.
func (h *Host) HandleJoinRequest(ctx context.Context, sess *session.Context, req JoinRequest) error {
	pubSigHex := canonical.ToHex(sess.PeerPubSig)

	h.mu.Lock()
	full := len(h.members) >= h.MaxMembers
	var resp JoinResponse
	if full {
		resp = JoinResponse{Type: TypeJoinResponse, Accepted: false, Reason: "lobby full"}
	} else {
		version, key := h.ring.Current()
		resp = JoinResponse{
			Type:           TypeJoinResponse,
			Accepted:       true,
			LobbyName:      h.LobbyName,
			GroupMailboxID: canonical.ToHex(h.GroupMailboxID[:]),
			KeyVersion:     version,
			GroupKey:       canonical.ToHex(key[:]),
		}
		h.members[pubSigHex] = &rosterMember{displayName: req.DisplayName, joinedAt: time.Now(), session: sess}
	}
	h.mu.Unlock()

	if resp.Accepted {
		metrics.LobbyJoinRequests.WithLabelValues("accepted").Inc()
		metrics.LobbyMembersActive.Inc()
	} else {
		metrics.LobbyJoinRequests.WithLabelValues("rejected").Inc()
	}

	if err := h.sendDM(ctx, sess, resp); err != nil {
		return fmt.Errorf("lobby: send join response: %w", err)
	}
	if !resp.Accepted {
		return nil
	}
	return h.broadcastMemberEvent(ctx, EventJoined, pubSigHex, req.DisplayName, pubSigHex)
}

// Kick removes a member, then rotates the group key and redistributes
// it to everyone remaining (spec §4.10: "this provides forward secrecy
// against kicked members").
func (h *Host) Kick(ctx context.Context, pubSigHex string) error {
	h.mu.Lock()
	m, ok := h.members[pubSigHex]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("lobby: kick: unknown member %s", pubSigHex)
	}
	delete(h.members, pubSigHex)
	h.mu.Unlock()
	metrics.LobbyMembersActive.Dec()

	if err := h.broadcastMemberEvent(ctx, EventKicked, pubSigHex, m.displayName, ""); err != nil {
		return fmt.Errorf("lobby: broadcast kick: %w", err)
	}
	return h.rotateKey(ctx, "kick")
}

// RotateKey generates a fresh 32-byte group key, advances key_version,
// and distributes it to every current member over their pairwise DM.
// Callers invoking it directly (outside Kick) are assumed to be acting
// on the scheduled rotation timer.
func (h *Host) RotateKey(ctx context.Context) error {
	return h.rotateKey(ctx, "timer")
}

func (h *Host) rotateKey(ctx context.Context, reason string) error {
	metrics.LobbyKeyRotations.WithLabelValues(reason).Inc()
	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return fmt.Errorf("lobby: rotate key: %w", err)
	}

	h.mu.Lock()
	version, _ := h.ring.Current()
	version++
	h.ring.Add(version, key)
	recipients := make([]*session.Context, 0, len(h.members))
	for _, m := range h.members {
		recipients = append(recipients, m.session)
	}
	h.mu.Unlock()

	rotation := KeyRotation{Type: TypeKeyRotation, KeyVersion: version, GroupKey: canonical.ToHex(key[:])}
	for _, sess := range recipients {
		if err := h.sendDM(ctx, sess, rotation); err != nil {
			return fmt.Errorf("lobby: distribute key rotation: %w", err)
		}
	}
	return nil
}

// PublishGroupMessage encrypts plaintext under the host's current group
// key and publishes it to the carrier DAG under the group prefix.
func (h *Host) PublishGroupMessage(ctx context.Context, plaintext []byte) error {
	h.mu.Lock()
	version, key := h.ring.Current()
	h.mu.Unlock()

	frame, err := h.GroupCodec.Pack(plaintext, version, key)
	if err != nil {
		return fmt.Errorf("lobby: publish group message: %w", err)
	}
	_, err = h.Net.Publish(ctx, wire.EncodeGroupPayload(frame))
	return err
}

func (h *Host) broadcastMemberEvent(ctx context.Context, event, subjectPubSig, displayName, skipPubSig string) error {
	h.mu.Lock()
	recipients := make([]*session.Context, 0, len(h.members))
	for pubSigHex, m := range h.members {
		if pubSigHex == skipPubSig {
			continue
		}
		recipients = append(recipients, m.session)
	}
	h.mu.Unlock()

	ev := MemberEvent{Type: TypeMemberEvent, Event: event, PubSig: subjectPubSig, DisplayName: displayName}
	for _, sess := range recipients {
		if err := h.sendDM(ctx, sess, ev); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) sendDM(ctx context.Context, sess *session.Context, v interface{}) error {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("lobby: marshal dm: %w", err)
	}
	codec := sess.Codec()
	if codec == nil {
		return fmt.Errorf("lobby: send dm: session has no key material")
	}
	frame, err := codec.Pack(plaintext, sess.NextOutboundSeq())
	if err != nil {
		return fmt.Errorf("lobby: pack dm: %w", err)
	}
	mailboxHex := canonical.ToHex(sess.MailboxID[:])
	_, err = h.Net.Publish(ctx, wire.EncodeMessagePayload(mailboxHex, frame))
	return err
}
