// Package mesh caches adjustment vectors gossiped from nearby peers.
//
// The in-memory index is authoritative for the current process lifetime;
// the sqlite mirror is best-effort and only consulted when the index has
// no entry (typically after a restart). Expiry is lazy: entries are
// checked and evicted on read, never by a background sweep — an idle
// device burns no timer for a cache nobody is reading.
package mesh

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/store"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

// DefaultTTL is the validity window for a gossiped delta.
const DefaultTTL = 6 * time.Hour

// Cache holds short-lived peer deltas keyed by stable cell key.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]vibe.MeshEntry

	db  *store.DB // optional durable mirror
	ttl time.Duration
}

// New creates a Cache. db may be nil to run memory-only; ttl <= 0 selects
// DefaultTTL.
func New(db *store.DB, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]vibe.MeshEntry),
		db:      db,
		ttl:     ttl,
	}
}

// TTL returns the configured validity window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// StoreUpdate records a delta received from a peer for the given cell.
// The in-memory write always succeeds; mirroring to sqlite is best-effort
// and a mirror failure is logged, never surfaced.
//
// Gossip peers are untrusted: a non-finite vector is rejected outright and
// each dimension is clamped to [-1,1] before the entry is admitted.
func (c *Cache) StoreUpdate(key cell.Key, delta vibe.Vector, receivedAt time.Time) error {
	if !delta.IsFinite() {
		return fmt.Errorf("mesh: rejecting non-finite delta for %s", key.StableKey())
	}

	entry := vibe.MeshEntry{
		Key:        key,
		Delta:      delta.ClampSym(1.0),
		ReceivedAt: receivedAt,
		ExpiresAt:  receivedAt.Add(c.ttl),
	}
	stableKey := key.StableKey()

	c.mu.Lock()
	c.entries[stableKey] = entry
	c.mu.Unlock()

	if c.db != nil {
		if err := c.db.SaveMeshEntry(stableKey, entry); err != nil {
			log.Printf("mesh: mirror write for %s: %v", stableKey, err)
		}
	}
	return nil
}

// GetNeighborUpdates returns the still-valid gossiped deltas for the
// 8-neighborhood of key, in no guaranteed order. Expired entries are
// treated as absent and evicted from the in-memory index as a side effect.
func (c *Cache) GetNeighborUpdates(key cell.Key) []vibe.Vector {
	now := time.Now()
	var deltas []vibe.Vector
	for _, neighbor := range key.Neighbors() {
		if entry, ok := c.lookup(neighbor.StableKey(), now); ok {
			deltas = append(deltas, entry.Delta)
		}
	}
	return deltas
}

// lookup checks the in-memory index first, then the durable mirror.
func (c *Cache) lookup(stableKey string, now time.Time) (vibe.MeshEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[stableKey]
	c.mu.RUnlock()

	if ok {
		if entry.Valid(now) {
			return entry, true
		}
		c.evict(stableKey, entry.ExpiresAt)
		return vibe.MeshEntry{}, false
	}

	if c.db == nil {
		return vibe.MeshEntry{}, false
	}
	mirrored, err := c.db.GetMeshEntry(stableKey)
	if err != nil {
		log.Printf("mesh: mirror read for %s: %v", stableKey, err)
		return vibe.MeshEntry{}, false
	}
	if mirrored == nil || !mirrored.Valid(now) {
		return vibe.MeshEntry{}, false
	}

	// Promote back into the index so the next read skips sqlite.
	c.mu.Lock()
	if _, exists := c.entries[stableKey]; !exists {
		c.entries[stableKey] = *mirrored
	}
	c.mu.Unlock()
	return *mirrored, true
}

// evict removes an expired entry. Guarded on ExpiresAt so a concurrent
// StoreUpdate that just refreshed the cell is not thrown away; racing
// evictions of the same expired entry are harmless no-ops.
func (c *Cache) evict(stableKey string, expiredAt time.Time) {
	c.mu.Lock()
	if entry, ok := c.entries[stableKey]; ok && entry.ExpiresAt.Equal(expiredAt) {
		delete(c.entries, stableKey)
	}
	c.mu.Unlock()

	if c.db != nil {
		if err := c.db.DeleteMeshEntry(stableKey); err != nil {
			log.Printf("mesh: mirror evict for %s: %v", stableKey, err)
		}
	}
}

// Len returns the number of entries in the in-memory index, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
