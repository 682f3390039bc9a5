package ticketid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOnEmptyStoreReturnsInitial(t *testing.T) {
	assert.Equal(t, "TICKET-1", DefaultScheme.Next("", nil))
	assert.Equal(t, "TICKET01", RotatingScheme.Next("", nil))
}

func TestNextOnUnparseableTailReturnsInitial(t *testing.T) {
	for _, bad := range []string{"garbage!", "123", "-7", "TICKET-", "TICKET-x"} {
		assert.Equal(t, "TICKET-1", DefaultScheme.Next(bad, nil), "tail %q", bad)
	}
}

func TestNextIncrementsCounter(t *testing.T) {
	assert.Equal(t, "TICKET-8", DefaultScheme.Next("TICKET-7", nil))
	assert.Equal(t, "TICKET-100", DefaultScheme.Next("TICKET-99", nil))
	assert.Equal(t, "TICKET03", RotatingScheme.Next("TICKET02", nil))
}

func TestNextKeepsRotatedPrefix(t *testing.T) {
	assert.Equal(t, "QWERTY05", RotatingScheme.Next("QWERTY04", nil))
}

func TestNextRotatesAtCeiling(t *testing.T) {
	id := RotatingScheme.Next("TICKET99", nil)
	prefix, n, ok := RotatingScheme.Parse(id)
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.NotEqual(t, "TICKET", prefix)
	assert.Len(t, prefix, rotatedPrefixLen)
	assert.Equal(t, strings.ToUpper(prefix), prefix)
}

func TestRotationSkipsPrefixesInUse(t *testing.T) {
	seen := map[string]bool{}
	rejected := 0
	inUse := func(p string) bool {
		// Reject the first three candidates to force regeneration.
		if rejected < 3 && !seen[p] {
			seen[p] = true
			rejected++
			return true
		}
		return seen[p]
	}
	id := RotatingScheme.Next("TICKET99", inUse)
	prefix, _, ok := RotatingScheme.Parse(id)
	require.True(t, ok)
	assert.False(t, seen[prefix], "rotated onto a prefix already in use")
}

func TestParseRejectsMalformedIDs(t *testing.T) {
	cases := []string{"", "42", "TICKET", "TICKET-", "TICKET-1x", "TICKET--1"}
	for _, id := range cases {
		_, _, ok := DefaultScheme.Parse(id)
		assert.False(t, ok, "expected %q to be rejected", id)
	}
}

func TestParseRoundTrip(t *testing.T) {
	prefix, n, ok := DefaultScheme.Parse("ABC-12")
	require.True(t, ok)
	assert.Equal(t, "ABC", prefix)
	assert.Equal(t, 12, n)
	assert.Equal(t, "ABC-12", DefaultScheme.Format(prefix, n))

	prefix, n, ok = RotatingScheme.Parse("XYZQRS07")
	require.True(t, ok)
	assert.Equal(t, "XYZQRS", prefix)
	assert.Equal(t, 7, n)
	assert.Equal(t, "XYZQRS07", RotatingScheme.Format(prefix, n))
}
