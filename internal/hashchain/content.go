// Package hashchain implements the tamper-evidence layer of the posting
// core: content hashes, the append-only chain of linked digests, and the
// approval proofs bound to it.
package hashchain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/meridian-books/meridian/internal/shared"
)

// TimestampLayout is RFC3339 with microsecond precision. Microseconds are
// required: multiple links can be created within the same second and the
// chain must remain strictly ordered and non-colliding.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// ContentHash is a hex-encoded SHA-256 digest of entity content.
type ContentHash struct {
	value string
}

// FromContent digests raw bytes.
func FromContent(content []byte) ContentHash {
	sum := sha256.Sum256(content)
	return ContentHash{value: hex.EncodeToString(sum[:])}
}

// FromString digests a string.
func FromString(content string) ContentHash {
	return FromContent([]byte(content))
}

// FromState digests an entity state snapshot. Keys are serialized in
// sorted order so the digest is independent of map iteration.
func FromState(state map[string]any) (ContentHash, error) {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, state[k])
	}
	raw, err := json.Marshal(ordered)
	if err != nil {
		return ContentHash{}, shared.Wrap(shared.KindValidationFailed, "hashchain: marshal state", err)
	}
	return FromContent(raw), nil
}

// ParseHash accepts a previously issued hex digest.
func ParseHash(hexDigest string) (ContentHash, error) {
	if len(hexDigest) != sha256.Size*2 {
		return ContentHash{}, shared.Ef(shared.KindValidationFailed, "hashchain: digest must be %d hex chars", sha256.Size*2)
	}
	if _, err := hex.DecodeString(hexDigest); err != nil {
		return ContentHash{}, shared.Wrap(shared.KindValidationFailed, "hashchain: invalid hex digest", err)
	}
	return ContentHash{value: hexDigest}, nil
}

// String returns the hex digest.
func (h ContentHash) String() string { return h.value }

// IsZero reports whether the hash is unset.
func (h ContentHash) IsZero() bool { return h.value == "" }

// Equal compares digests in constant time.
func (h ContentHash) Equal(other ContentHash) bool {
	return subtle.ConstantTimeCompare([]byte(h.value), []byte(other.value)) == 1
}
