// Package idgen produces the time-ordered 128-bit identifiers spec.md
// treats as load-bearing: ordering, pagination windows, and
// "first unread after cursor" all depend on lexicographic id order
// matching creation order, which random v4 UUIDs do not guarantee.
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a new time-ordered identifier as a lowercase-insensitive
// Crockford base32 string. Monotonic within the same millisecond via a
// shared, mutex-guarded entropy source so concurrent callers in the
// same process never regress ordering.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// Less reports whether a sorts strictly before b under the same
// ordering the identifiers encode, i.e. plain string comparison
// (Crockford base32 preserves numeric order lexicographically).
func Less(a, b string) bool {
	return a < b
}

// Valid reports whether s parses as a ULID, used to reject
// malformed ids (before/after/around params, reply_to_id, etc.)
// as validation errors rather than passing them through to storage.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
