package bot

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Deduplicator remembers recently handled event ids
type Deduplicator struct {
	seen *cache.Cache
}

// NewDeduplicator creates a deduplicator remembering ids for ttl
func NewDeduplicator(ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Deduplicator{seen: cache.New(ttl, 2*ttl)}
}

// Seen marks id as handled and reports whether it already was. Empty ids are
// never considered seen.
func (d *Deduplicator) Seen(id string) bool {
	if id == "" {
		return false
	}
	// Add fails when the key is already present, which makes check-and-mark atomic
	return d.seen.Add(id, struct{}{}, cache.DefaultExpiration) != nil
}
