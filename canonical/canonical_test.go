// SPDX-License-Identifier: LGPL-3.0-or-later

package canonical

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeys(t *testing.T) {
	v := map[string]interface{}{
		"b": 1,
		"a": 2,
		"c": map[string]interface{}{"z": 1, "y": 2},
	}
	out, err := Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `{"a":2,"b":1,"c":{"y":2,"z":1}}`, string(out))
}

func TestMarshalNumbers(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{-1, "-1"},
		{1.5, "1.5"},
		{100, "100"},
	}
	for _, tt := range tests {
		out, err := Marshal(tt.in)
		require.NoError(t, err)
		require.Equal(t, tt.want, string(out))
	}
}

func TestMarshalStringEscaping(t *testing.T) {
	out, err := Marshal("a\nb\"c\\d")
	require.NoError(t, err)
	require.Equal(t, `"a\nb\"c\\d"`, string(out))
}

func TestStrictParseRoundTrip(t *testing.T) {
	canonicalBytes := []byte(`{"a":1,"b":[1,2,3]}`)
	_, err := StrictParse(canonicalBytes)
	require.NoError(t, err)
}

func TestStrictParseRejectsNonCanonical(t *testing.T) {
	nonCanonical := []byte(`{"b": [1,2,3], "a": 1}`)
	_, err := StrictParse(nonCanonical)
	require.ErrorIs(t, err, ErrNonCanonical)
}

func TestStrictParseRejectsUnsortedKeys(t *testing.T) {
	_, err := StrictParse([]byte(`{"b":1,"a":2}`))
	require.ErrorIs(t, err, ErrNonCanonical)
}

func TestPrepareForSigningOmitsFields(t *testing.T) {
	m := map[string]interface{}{
		"sid":  "abc",
		"sig":  "deadbeef",
		"meta": map[string]interface{}{"x": 1},
	}
	prepared := PrepareForSigning(m, []string{"sig"}, true)
	_, hasSig := prepared["sig"]
	_, hasMeta := prepared["meta"]
	require.False(t, hasSig)
	require.False(t, hasMeta)
	require.Equal(t, "abc", prepared["sid"])
}

func TestHexRoundTrip(t *testing.T) {
	b := []byte{0xde, 0xad, 0xbe, 0xef}
	s := ToHex(b)
	require.Equal(t, "deadbeef", s)
	back, err := FromHex(s)
	require.NoError(t, err)
	require.Equal(t, b, back)
}

func TestFromHexRejectsUppercase(t *testing.T) {
	_, err := FromHex("DEADBEEF")
	require.Error(t, err)
}

func TestFromHexLenEnforcesLength(t *testing.T) {
	_, err := FromHexLen("dead", 4)
	require.Error(t, err)
	_, err = FromHexLen("deadbeef", 4)
	require.NoError(t, err)
}
