// SPDX-License-Identifier: LGPL-3.0-or-later

package persistence

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a storage key has no record.
var ErrNotFound = errors.New("persistence: record not found")

// ErrDecryptFailed is returned when a blob fails to decrypt, e.g. a
// wrong passphrase or corrupted ciphertext (spec §4.9's
// PersistenceDecryptFailed status).
var ErrDecryptFailed = errors.New("persistence: decryption failed")

// Store is the collaborator contract the handover engine and session
// vault depend on (spec §4.9 "Persistence: put/get/delete of opaque
// encrypted records; findLatestResumeRecord(prefix)"). Manager hands
// implementations the JSON encoding of a Record as opaque bytes;
// FileVault encrypts them, while MemoryStore and the Postgres store keep
// them as given.
type Store interface {
	Put(ctx context.Context, key string, blob []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// FindLatestResumeRecord returns the key and blob of the most
	// recently written record whose key has the given prefix, or
	// ErrNotFound if none exists.
	FindLatestResumeRecord(ctx context.Context, prefix string) (key string, blob []byte, err error)
}
