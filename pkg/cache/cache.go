// Package cache stores rendered artifacts keyed by the description they were
// laid out from.
//
// Graphviz layout is the only expensive step of the compiler, and its
// output depends solely on the DOT text and the output format. Caching by a
// hash of both lets the watch loop and the HTTP host skip layout when an
// edit does not change the emitted description (whitespace, comments, or a
// reordering that the filter removes).
//
// Three backends implement [Cache]:
//
//   - [NullCache] never stores anything (caching disabled)
//   - [FileCache] stores entries as JSON files for CLI use
//   - [RedisCache] stores entries in Redis for a shared preview host
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the stored value and true, or nil and false on a miss.
	// Expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// TTLArtifact is the default lifetime of a rendered artifact.
const TTLArtifact = 7 * 24 * time.Hour

// Keyer derives cache keys.
type Keyer interface {
	// ArtifactKey returns the key for the artifact of the given format laid
	// out from a description with hash dotHash.
	ArtifactKey(dotHash, format string) string
}

// DefaultKeyer produces unscoped keys of the form "artifact:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ArtifactKey implements [Keyer].
func (DefaultKeyer) ArtifactKey(dotHash, format string) string {
	return hashKey("artifact", dotHash, format)
}
