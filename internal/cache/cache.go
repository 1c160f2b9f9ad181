// Package cache implements the advisory build cache. A cache miss or a
// failed save never fails a run; it only costs build time. A hit must be
// bit-identical in effect to a cold build, so entries are addressed by a
// digest of everything that determines their content.
package cache

import (
	"context"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// keyDomain is the BLAKE3 keyed-hashing domain for cache keys. Domain
// separation keeps cache keys from colliding with any other digest the
// system might compute over the same bytes. The value is the ASCII domain
// name zero-padded to 32 bytes and must never change: changing it
// invalidates every existing cache entry.
var keyDomain = [32]byte{
	's', 'h', 'i', 'p', 'l', 'i', 'n', 'e', '.', 'c', 'a', 'c', 'h', 'e', '.',
	'l', 'o', 'c', 'k', 'f', 'i', 'l', 'e',
}

// Key derives the cache key for a (platform, dependency lockfile) pair.
// The platform is length-prefixed by a zero byte separator so that
// ("ab", "c") and ("a", "bc") cannot produce the same digest.
func Key(platform string, lockfile []byte) string {
	h, err := blake3.NewKeyed(keyDomain[:])
	if err != nil {
		// NewKeyed only fails for a key of the wrong size; keyDomain is
		// exactly 32 bytes.
		panic(err)
	}
	h.Write([]byte(platform))
	h.Write([]byte{0})
	h.Write(lockfile)
	return hex.EncodeToString(h.Sum(nil))
}

// Cache stores reusable build state. Restore reports ok=false on a miss;
// any error from either method is advisory and must be logged, never
// propagated as a run failure.
type Cache interface {
	Restore(ctx context.Context, key string) (data []byte, ok bool, err error)
	Save(ctx context.Context, key string, data []byte) error
}

// Noop is the disabled cache: every restore is a miss and saves vanish.
type Noop struct{}

func (Noop) Restore(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Save(context.Context, string, []byte) error            { return nil }
