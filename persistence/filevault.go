// SPDX-License-Identifier: LGPL-3.0-or-later

package persistence

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Iterations matches the teacher's encrypted key vault.
const pbkdf2Iterations = 100000

// encryptedBlob is the on-disk shape of one record, adapted from the
// teacher's EncryptedKeyData (pkg/agent/crypto/vault/secure_storage.go).
type encryptedBlob struct {
	Version    string    `json:"version"`
	Key        string    `json:"key"`
	Algorithm  string    `json:"algorithm"`
	Salt       string    `json:"salt"`
	IV         string    `json:"iv"`
	Ciphertext string    `json:"ciphertext"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FileVault is an encrypted-file-backed Store, AES-256-GCM with a
// PBKDF2-derived key per blob (spec §4.8, grounded on the teacher's
// FileVault for key material, here repurposed to store opaque resume
// records instead of raw private keys).
type FileVault struct {
	basePath   string
	passphrase string
	mu         sync.RWMutex
}

// NewFileVault creates (or reuses) a directory-backed vault. passphrase
// derives the per-blob encryption key via PBKDF2-HMAC-SHA256.
func NewFileVault(basePath, passphrase string) (*FileVault, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("persistence: create vault directory: %w", err)
	}
	return &FileVault{basePath: basePath, passphrase: passphrase}, nil
}

func (v *FileVault) Put(_ context.Context, key string, blob []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("persistence: generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(v.passphrase), salt, pbkdf2Iterations, 32, sha256.New)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return fmt.Errorf("persistence: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("persistence: new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("persistence: generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, blob, nil)

	now := time.Now()
	createdAt := now
	if existing, err := v.readBlob(key); err == nil {
		createdAt = existing.CreatedAt
	}

	enc := encryptedBlob{
		Version:    "1.0",
		Key:        key,
		Algorithm:  "AES-256-GCM",
		Salt:       base64.StdEncoding.EncodeToString(salt),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}
	data, err := json.MarshalIndent(enc, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal blob: %w", err)
	}
	return os.WriteFile(v.path(key), data, 0600)
}

func (v *FileVault) Get(_ context.Context, key string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	enc, err := v.readBlob(key)
	if err != nil {
		return nil, err
	}
	return v.decrypt(enc)
}

func (v *FileVault) Delete(_ context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.Remove(v.path(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("persistence: delete blob: %w", err)
	}
	return nil
}

func (v *FileVault) FindLatestResumeRecord(_ context.Context, prefix string) (string, []byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	files, err := os.ReadDir(v.basePath)
	if err != nil {
		return "", nil, fmt.Errorf("persistence: read vault directory: %w", err)
	}

	var candidates []encryptedBlob
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		enc, err := v.readBlobFile(filepath.Join(v.basePath, f.Name()))
		if err != nil {
			continue
		}
		if strings.HasPrefix(enc.Key, prefix) {
			candidates = append(candidates, enc)
		}
	}
	if len(candidates) == 0 {
		return "", nil, ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
	})
	best := candidates[0]
	plaintext, err := v.decrypt(best)
	if err != nil {
		return "", nil, err
	}
	return best.Key, plaintext, nil
}

func (v *FileVault) readBlob(key string) (encryptedBlob, error) {
	return v.readBlobFile(v.path(key))
}

func (v *FileVault) readBlobFile(path string) (encryptedBlob, error) {
	var enc encryptedBlob
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return enc, ErrNotFound
		}
		return enc, fmt.Errorf("persistence: read blob: %w", err)
	}
	if err := json.Unmarshal(data, &enc); err != nil {
		return enc, fmt.Errorf("persistence: unmarshal blob: %w", err)
	}
	return enc, nil
}

func (v *FileVault) decrypt(enc encryptedBlob) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(enc.Salt)
	if err != nil {
		return nil, fmt.Errorf("persistence: decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(enc.IV)
	if err != nil {
		return nil, fmt.Errorf("persistence: decode iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(enc.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("persistence: decode ciphertext: %w", err)
	}

	derived := pbkdf2.Key([]byte(v.passphrase), salt, pbkdf2Iterations, 32, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("persistence: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("persistence: new gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func (v *FileVault) path(key string) string {
	safe := filepath.Base(key)
	return filepath.Join(v.basePath, safe+".json")
}
