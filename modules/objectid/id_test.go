package objectid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashRoundTrip(t *testing.T) {
	id := Hash([]byte("hello world"))
	require.False(t, id.IsZero())
	parsed := FromHex(id.String())
	require.Equal(t, id, parsed)
}

func TestChangeIDReverseHexRoundTrip(t *testing.T) {
	id := ChangeID(Hash([]byte("some change")))
	s := id.String()
	require.Len(t, s, DigestSize*2)
	for _, r := range s {
		require.Contains(t, reverseHexAlphabet, string(r))
	}
	back := ChangeIDFromReverseHex(s)
	require.Equal(t, id, back)
}

func TestHexPrefixEvenOdd(t *testing.T) {
	full := Hash([]byte("abcdef"))
	even, ok := NewHexPrefix(full.String()[:4])
	require.True(t, ok)
	require.True(t, even.IsPrefixOf(full))

	odd, ok := NewHexPrefix(full.String()[:5])
	require.True(t, ok)
	require.True(t, odd.IsPrefixOf(full))

	other := Hash([]byte("zzzzzz"))
	require.False(t, odd.IsPrefixOf(other))
}

func TestHexPrefixInvalid(t *testing.T) {
	_, ok := NewHexPrefix("not-hex!")
	require.False(t, ok)
}
