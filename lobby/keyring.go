// SPDX-License-Identifier: LGPL-3.0-or-later

// Package lobby implements the group-session overlay (spec §4.10): a
// host-mediated roster, a rotating 32-byte group key distributed over
// pairwise KKTP sessions, and a group AEAD codec layered on top of the
// pairwise session/message machinery. Modeled in the same small-
// collaborator style as handshake and handover, with its own mutex-
// guarded state per the teacher's general concurrency discipline
// (pkg/agent/session/session.go, pkg/agent/transport/mock.go).
package lobby

import (
	"errors"
	"sync"
)

// ErrKeyVersionUnknown means a group message's key_version was never
// held by this keyring, e.g. a kicked member facing a later rotation.
var ErrKeyVersionUnknown = errors.New("lobby: key version unknown")

// KeyRing holds the group keys a member (or the host) currently knows
// about, indexed by key_version. Members accumulate one entry per
// key_rotation DM they receive; a kicked member's ring simply stops
// growing, giving forward secrecy against later rotations (spec §4.10:
// "this provides forward secrecy against kicked members").
type KeyRing struct {
	mu      sync.RWMutex
	keys    map[uint32][32]byte
	current uint32
}

// NewKeyRing builds a ring seeded with one version, typically version 1
// handed out in a lobby_join_response.
func NewKeyRing(version uint32, key [32]byte) *KeyRing {
	return &KeyRing{keys: map[uint32][32]byte{version: key}, current: version}
}

// Add installs a new key version, e.g. from a key_rotation DM.
func (k *KeyRing) Add(version uint32, key [32]byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[version] = key
	if version > k.current {
		k.current = version
	}
}

// Current returns the most recent key version this ring knows and its
// key, used to encrypt outbound group messages.
func (k *KeyRing) Current() (uint32, [32]byte) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current, k.keys[k.current]
}

// Lookup returns the key for a specific version, e.g. decrypting a
// group message still in flight under an older version.
func (k *KeyRing) Lookup(version uint32) ([32]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[version]
	if !ok {
		return [32]byte{}, ErrKeyVersionUnknown
	}
	return key, nil
}

// Versions reports every key_version this ring currently holds, sorted
// ascending. Exposed for tests asserting forward-secrecy boundaries.
func (k *KeyRing) Versions() []uint32 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]uint32, 0, len(k.keys))
	for v := range k.keys {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Retire drops a key version, e.g. once the host is confident every
// remaining member has rotated past it.
func (k *KeyRing) Retire(version uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, version)
}
