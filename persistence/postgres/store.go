// SPDX-License-Identifier: LGPL-3.0-or-later

// Package postgres is a pgx-backed persistence.Store that keeps each
// blob as opaque bytes, so the SQL schema never has to know about
// resume-record shape (spec §4.8: "the SQL backend never needs to parse
// the blob, only opaque bytes"). It does not encrypt: blobs are stored
// exactly as handed to Put.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kktp-network/kktp/persistence"
)

// Config holds the Postgres connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Store implements persistence.Store backed by a (key, blob, updated_at)
// table, grounded on the teacher's pkg/storage/postgres/sessions.go.
//
// Expected schema:
//
//	CREATE TABLE kktp_resume_records (
//	    key        TEXT PRIMARY KEY,
//	    blob       BYTEA NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and verifies the connection.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("persistence/postgres: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persistence/postgres: ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Put(ctx context.Context, key string, blob []byte) error {
	const query = `
		INSERT INTO kktp_resume_records (key, blob, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, key, blob); err != nil {
		return fmt.Errorf("persistence/postgres: put: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT blob FROM kktp_resume_records WHERE key = $1`

	var blob []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("persistence/postgres: get: %w", err)
	}
	return blob, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kktp_resume_records WHERE key = $1`

	tag, err := s.pool.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("persistence/postgres: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *Store) FindLatestResumeRecord(ctx context.Context, prefix string) (string, []byte, error) {
	const query = `
		SELECT key, blob FROM kktp_resume_records
		WHERE key LIKE $1
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var key string
	var blob []byte
	err := s.pool.QueryRow(ctx, query, prefix+"%").Scan(&key, &blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, persistence.ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("persistence/postgres: find latest: %w", err)
	}
	return key, blob, nil
}
