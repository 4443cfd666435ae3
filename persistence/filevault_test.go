// SPDX-License-Identifier: LGPL-3.0-or-later

package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileVaultPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	v, err := NewFileVault(dir, "correct horse battery staple")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, v.Put(ctx, "kktp_resume_abc", []byte(`{"sid":"abc"}`)))

	got, err := v.Get(ctx, "kktp_resume_abc")
	require.NoError(t, err)
	require.JSONEq(t, `{"sid":"abc"}`, string(got))
}

func TestFileVaultWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	v, err := NewFileVault(dir, "right-passphrase")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, v.Put(ctx, "kktp_resume_abc", []byte("payload")))

	wrong, err := NewFileVault(dir, "wrong-passphrase")
	require.NoError(t, err)
	_, err = wrong.Get(ctx, "kktp_resume_abc")
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestFileVaultMissingKey(t *testing.T) {
	dir := t.TempDir()
	v, err := NewFileVault(dir, "pw")
	require.NoError(t, err)
	_, err = v.Get(context.Background(), "kktp_resume_missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileVaultFindLatestResumeRecord(t *testing.T) {
	dir := t.TempDir()
	v, err := NewFileVault(dir, "pw")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, v.Put(ctx, "kktp_resume_a", []byte("first")))
	require.NoError(t, v.Put(ctx, "kktp_resume_b", []byte("second")))
	require.NoError(t, v.Put(ctx, "other_c", []byte("ignored")))

	key, blob, err := v.FindLatestResumeRecord(ctx, "kktp_resume_")
	require.NoError(t, err)
	require.Contains(t, []string{"kktp_resume_a", "kktp_resume_b"}, key)
	require.NotEmpty(t, blob)
}
