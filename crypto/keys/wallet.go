// SPDX-License-Identifier: LGPL-3.0-or-later

package keys

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Wallet is a contract for a key-custody backend capable of deriving
// branch/index identity keys on demand. Real secure key storage is
// explicitly out of scope (spec §1 Non-goals); KKTP only needs to agree
// on *which* key pair a given branch/index selects, so this interface
// exists to let session and handover code depend on an abstraction
// rather than a concrete signer.
type Wallet interface {
	// Derive returns the key pair for the given branch and index. The
	// same (branch, index) pair must always yield the same key pair for
	// the lifetime of the wallet.
	Derive(branch string, index uint32) (*KeyPair, error)
}

// memoryWallet is a deterministic, non-custodial Wallet implementation
// for tests and local tooling: every key is derived from a root seed via
// HKDF-expand, never persisted.
type memoryWallet struct {
	seed []byte
}

// NewMemoryWallet builds a Wallet that derives keys deterministically
// from seed. It is not suitable for production custody; it exists so
// that session and handover logic can be exercised without a real
// signer backend.
func NewMemoryWallet(seed []byte) Wallet {
	cp := make([]byte, len(seed))
	copy(cp, seed)
	return &memoryWallet{seed: cp}
}

func (w *memoryWallet) Derive(branch string, index uint32) (*KeyPair, error) {
	info := fmt.Sprintf("kktp-wallet|%s|%d", branch, index)
	r := hkdf.New(sha256.New, w.seed, nil, []byte(info))
	scalar := make([]byte, 32)
	if _, err := io.ReadFull(r, scalar); err != nil {
		return nil, fmt.Errorf("keys: derive: %w", err)
	}
	return FromPrivateBytes(scalar)
}
