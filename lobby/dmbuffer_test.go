// SPDX-License-Identifier: LGPL-3.0-or-later

package lobby

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDMBufferPreservesOrderAndDrains(t *testing.T) {
	b := NewDMBuffer(0)
	b.Add("mbox1", "a")
	b.Add("mbox1", "b")
	b.Add("mbox1", "c")

	got := b.Drain("mbox1")
	require.Equal(t, []string{"a", "b", "c"}, got)

	// Draining clears the queue.
	require.Empty(t, b.Drain("mbox1"))
}

func TestDMBufferDropsOldestOnOverflow(t *testing.T) {
	b := NewDMBuffer(2)
	b.Add("mbox1", "a")
	b.Add("mbox1", "b")
	b.Add("mbox1", "c") // overflows, drops "a"

	require.Equal(t, []string{"b", "c"}, b.Drain("mbox1"))
	require.Equal(t, 1, b.Dropped("mbox1"))
}

func TestDMBufferKeepsMailboxesIndependent(t *testing.T) {
	b := NewDMBuffer(0)
	b.Add("mbox1", "x")
	b.Add("mbox2", "y")

	require.Equal(t, []string{"x"}, b.Drain("mbox1"))
	require.Equal(t, []string{"y"}, b.Drain("mbox2"))
}
