// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdvanceValidPath(t *testing.T) {
	s := StateIdle
	var err error
	for _, next := range []State{StateDiscovering, StateConnecting, StateActive, StateClosed} {
		s, err = advance(s, next)
		require.NoError(t, err)
	}
	require.Equal(t, StateClosed, s)
}

func TestAdvanceRejectsSkippedState(t *testing.T) {
	_, err := advance(StateIdle, StateActive)
	require.Error(t, err)
	var verr *ErrInvalidTransition
	require.ErrorAs(t, err, &verr)
}

func TestAdvanceAllowsFaultFromAnyNonTerminal(t *testing.T) {
	for _, s := range []State{StateIdle, StateDiscovering, StateConnecting, StateActive} {
		_, err := advance(s, StateFaulted)
		require.NoError(t, err)
	}
}

func TestAdvanceRejectsTransitionFromTerminal(t *testing.T) {
	_, err := advance(StateClosed, StateActive)
	require.Error(t, err)
	_, err = advance(StateFaulted, StateActive)
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "ACTIVE", StateActive.String())
	require.Equal(t, "FAULTED", StateFaulted.String())
}
