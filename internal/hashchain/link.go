package hashchain

import (
	"time"

	"github.com/google/uuid"
)

// GenesisHash anchors the first link of every chain.
var GenesisHash = FromString("meridian:genesis")

// ChainLink binds one log entry's content hash to its predecessor.
type ChainLink struct {
	ID           uuid.UUID
	Sequence     int64
	PreviousHash ContentHash
	ContentHash  ContentHash
	Timestamp    time.Time
}

// NewChainLink builds a link on top of the given tail hash. The timestamp
// is truncated to microseconds so ComputeHash round-trips through the
// stored representation.
func NewChainLink(previous ContentHash, content ContentHash, at time.Time) ChainLink {
	return ChainLink{
		ID:           uuid.New(),
		PreviousHash: previous,
		ContentHash:  content,
		Timestamp:    at.UTC().Truncate(time.Microsecond),
	}
}

// ComputeHash digests previousHash || contentHash || timestamp. The
// timestamp is rendered with microsecond precision.
func (l ChainLink) ComputeHash() ContentHash {
	return FromString(l.PreviousHash.String() + l.ContentHash.String() + l.Timestamp.UTC().Format(TimestampLayout))
}

// Verify reports whether the stored previous hash matches the expected
// tail computed from the prior link.
func (l ChainLink) Verify(expectedPrevious ContentHash) bool {
	return l.PreviousHash.Equal(expectedPrevious)
}

// VerifyChain walks links from genesis and returns the index of the first
// broken link, or -1 when the whole chain verifies. A single broken link
// invalidates everything after it.
func VerifyChain(links []ChainLink) int {
	expected := GenesisHash
	for i, link := range links {
		if !link.Verify(expected) {
			return i
		}
		expected = link.ComputeHash()
	}
	return -1
}
