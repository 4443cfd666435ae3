// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimulateHandshakeSucceeds(t *testing.T) {
	simulateVRF = false
	require.NoError(t, runSimulateHandshake(simulateHandshakeCmd, nil))
}

func TestSimulateHandshakeRejectsVRFFlag(t *testing.T) {
	simulateVRF = true
	defer func() { simulateVRF = false }()
	require.Error(t, runSimulateHandshake(simulateHandshakeCmd, nil))
}
