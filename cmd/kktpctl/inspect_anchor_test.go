// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kktp-network/kktp/crypto/keys"
	"github.com/kktp-network/kktp/wire"
)

func TestInspectAnchorValidDiscovery(t *testing.T) {
	factory := wire.NewFactory(nil)
	sig, err := keys.Generate()
	require.NoError(t, err)
	dh, err := keys.Generate()
	require.NoError(t, err)

	sid, err := factory.NewSID([]byte("seed"))
	require.NoError(t, err)
	d := factory.NewDiscovery(sid, sig.PublicCompressed(), dh.PublicCompressed())
	sigHex, err := wire.SignAnchor(sig, d, []string{"sig"}, true)
	require.NoError(t, err)
	d.Sig = sigHex

	out, err := json.Marshal(d)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "discovery.json")
	require.NoError(t, os.WriteFile(path, out, 0o644))

	require.NoError(t, runInspectAnchor(inspectAnchorCmd, []string{path}))
}

func TestInspectAnchorRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"not_a_real_anchor"}`), 0o644))

	require.Error(t, runInspectAnchor(inspectAnchorCmd, []string{path}))
}
