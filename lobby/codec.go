// SPDX-License-Identifier: LGPL-3.0-or-later

package lobby

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/kktp-network/kktp/canonical"
	"github.com/kktp-network/kktp/internal/metrics"
	"github.com/kktp-network/kktp/wire"
)

const groupNonceSize = 24 // XChaCha20-Poly1305, same framing as message.Codec

// GroupCodec packs and unpacks group_message frames for one lobby,
// mirroring message.Codec's pack/unpack split but keyed by key_version
// rather than a directional sequence (spec §4.10's group AEAD).
type GroupCodec struct {
	GroupMailboxID [32]byte
	SenderPubSig   string // lowercase hex, this party's own signing key
}

// NewGroupCodec builds a GroupCodec bound to one lobby and sender.
func NewGroupCodec(groupMailboxID [32]byte, senderPubSig []byte) *GroupCodec {
	return &GroupCodec{GroupMailboxID: groupMailboxID, SenderPubSig: canonical.ToHex(senderPubSig)}
}

// Pack encrypts plaintext under keyVersion/key and returns the
// canonical JSON of the resulting group_message anchor.
func (c *GroupCodec) Pack(plaintext []byte, keyVersion uint32, key [32]byte) ([]byte, error) {
	frame, err := c.pack(plaintext, keyVersion, key)
	if err != nil {
		metrics.LobbyGroupMessages.WithLabelValues("seal", "failure").Inc()
		return nil, err
	}
	metrics.LobbyGroupMessages.WithLabelValues("seal", "success").Inc()
	metrics.CryptoOperations.WithLabelValues("seal", "xchacha20poly1305").Inc()
	return frame, nil
}

func (c *GroupCodec) pack(plaintext []byte, keyVersion uint32, key [32]byte) ([]byte, error) {
	aad, err := wire.BuildGroupAAD(c.GroupMailboxID[:], keyVersion)
	if err != nil {
		return nil, fmt.Errorf("lobby: pack: %w", err)
	}

	nonce := make([]byte, groupNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("lobby: pack: nonce: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("lobby: pack: aead: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, aad)

	gm := wire.GroupMessage{
		Type:           "group_message",
		Version:        wire.ProtocolVersion,
		GroupMailboxID: canonical.ToHex(c.GroupMailboxID[:]),
		SenderPubSig:   c.SenderPubSig,
		KeyVersion:     keyVersion,
		Nonce:          canonical.ToHex(nonce),
		Ciphertext:     canonical.ToHex(ciphertext),
		Timestamp:      time.Now().Unix(),
	}
	return canonical.Marshal(gm)
}

// Unpack decrypts a group_message using whatever key in ring matches
// its key_version. Returns ErrKeyVersionUnknown (via KeyRing.Lookup) if
// the receiver never held that version — the expected outcome for a
// kicked member facing a later rotation.
func (c *GroupCodec) Unpack(gm *wire.GroupMessage, ring *KeyRing) ([]byte, error) {
	plaintext, err := c.unpack(gm, ring)
	if err != nil {
		metrics.LobbyGroupMessages.WithLabelValues("open", "failure").Inc()
		return nil, err
	}
	metrics.LobbyGroupMessages.WithLabelValues("open", "success").Inc()
	metrics.CryptoOperations.WithLabelValues("open", "xchacha20poly1305").Inc()
	return plaintext, nil
}

func (c *GroupCodec) unpack(gm *wire.GroupMessage, ring *KeyRing) ([]byte, error) {
	if gm.GroupMailboxID != canonical.ToHex(c.GroupMailboxID[:]) {
		return nil, fmt.Errorf("lobby: unpack: group mailbox id mismatch")
	}
	key, err := ring.Lookup(gm.KeyVersion)
	if err != nil {
		return nil, err
	}

	nonce, err := canonical.FromHexLen(gm.Nonce, groupNonceSize)
	if err != nil {
		return nil, fmt.Errorf("lobby: unpack: %w", err)
	}
	ciphertext, err := canonical.FromHex(gm.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("lobby: unpack: %w", err)
	}
	aad, err := wire.BuildGroupAAD(c.GroupMailboxID[:], gm.KeyVersion)
	if err != nil {
		return nil, fmt.Errorf("lobby: unpack: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("lobby: unpack: aead: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("lobby: unpack: decryption failed")
	}
	return plaintext, nil
}
