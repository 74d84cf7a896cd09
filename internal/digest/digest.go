// Package digest fingerprints agent output.
//
// Primary is a SHA-256 hex digest and serves as the ordering key for merged
// artifacts. Secondary is a 64-bit xxHash, cheap enough for equality checks
// and external cache keys.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Pair holds both digests of one output.
type Pair struct {
	Primary   string `json:"digest_primary"`
	Secondary string `json:"digest_secondary"`
}

// Compute digests raw output bytes.
func Compute(raw []byte) Pair {
	sum := sha256.Sum256(raw)
	return Pair{
		Primary:   hex.EncodeToString(sum[:]),
		Secondary: formatXX(xxhash.Sum64(raw)),
	}
}

// String digests a string.
func String(raw string) Pair {
	sum := sha256.Sum256([]byte(raw))
	return Pair{
		Primary:   hex.EncodeToString(sum[:]),
		Secondary: formatXX(xxhash.Sum64String(raw)),
	}
}

// Equal reports whether two outputs are byte-identical according to both digests.
func (p Pair) Equal(o Pair) bool {
	return p.Primary == o.Primary && p.Secondary == o.Secondary
}

func formatXX(v uint64) string {
	s := strconv.FormatUint(v, 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}
