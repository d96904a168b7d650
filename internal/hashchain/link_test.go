package hashchain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, n int) []ChainLink {
	t.Helper()
	base := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	links := make([]ChainLink, 0, n)
	prev := GenesisHash
	for i := 0; i < n; i++ {
		// Same-second timestamps differ only in microseconds.
		link := NewChainLink(prev, FromString(fmt.Sprintf("entry-%d", i)), base.Add(time.Duration(i)*time.Microsecond))
		links = append(links, link)
		prev = link.ComputeHash()
	}
	return links
}

func TestContentHash(t *testing.T) {
	a := FromString("hello")
	b := FromString("hello")
	c := FromString("hello!")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Len(t, a.String(), 64)

	parsed, err := ParseHash(a.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(a))

	_, err = ParseHash("short")
	require.Error(t, err)
	_, err = ParseHash("zz" + a.String()[2:])
	require.Error(t, err)
}

func TestFromStateDeterministic(t *testing.T) {
	a, err := FromState(map[string]any{"amount": 100, "currency": "USD"})
	require.NoError(t, err)
	b, err := FromState(map[string]any{"currency": "USD", "amount": 100})
	require.NoError(t, err)
	assert.True(t, a.Equal(b), "digest must not depend on map iteration order")
}

func TestComputeHashUsesMicrosecondPrecision(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewChainLink(GenesisHash, FromString("x"), at)
	b := NewChainLink(GenesisHash, FromString("x"), at.Add(time.Microsecond))
	assert.False(t, a.ComputeHash().Equal(b.ComputeHash()),
		"links one microsecond apart must hash differently")
}

func TestVerifyChain(t *testing.T) {
	links := buildChain(t, 5)
	assert.Equal(t, -1, VerifyChain(links))
	assert.Equal(t, -1, VerifyChain(nil))
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	links := buildChain(t, 5)

	// Mutating one link's content breaks that link and everything after.
	tampered := append([]ChainLink(nil), links...)
	tampered[2].ContentHash = FromString("edited out-of-band")
	assert.Equal(t, 3, VerifyChain(tampered),
		"link 3's stored previous hash no longer matches link 2's computed hash")

	// Rewriting the link's previous hash is caught at the link itself.
	tampered = append([]ChainLink(nil), links...)
	tampered[2].PreviousHash = FromString("forged")
	assert.Equal(t, 2, VerifyChain(tampered))

	// Genesis forgery is caught immediately.
	tampered = append([]ChainLink(nil), links...)
	tampered[0].PreviousHash = FromString("not-genesis")
	assert.Equal(t, 0, VerifyChain(tampered))
}
