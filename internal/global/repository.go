package global

import (
	"context"
	"log"

	"github.com/vibemesh/vibemesh/internal/cell"
	"github.com/vibemesh/vibemesh/internal/store"
	"github.com/vibemesh/vibemesh/internal/vibe"
)

// Repository serves the shared aggregate for a cell with a three-tier
// fallback: remote fetch, then on-device cache, then the neutral default.
// Every call returns a usable state; nothing here ever errors out.
type Repository struct {
	db     *store.DB
	remote RemoteClient
}

// NewRepository creates a Repository. remote may be nil for a fully
// offline device, in which case only cache and default tiers apply.
func NewRepository(db *store.DB, remote RemoteClient) *Repository {
	return &Repository{db: db, remote: remote}
}

// GlobalState returns the shared aggregate for the cell.
//
// On remote success the result is cached on-device best-effort (a cache
// write failure is logged and swallowed — the remote copy remains
// authoritative). On any remote failure, including not-found, the cached
// row is returned verbatim; staleness is visible only through UpdatedAt.
// With no cache row either, the neutral default is returned.
func (r *Repository) GlobalState(ctx context.Context, key cell.Key) vibe.GlobalState {
	if r.remote != nil {
		st, err := r.remote.FetchGlobalState(ctx, key)
		if err == nil && st != nil {
			if cacheErr := r.db.SaveGlobalCache(*st); cacheErr != nil {
				log.Printf("global: cache write for %s: %v", key.StableKey(), cacheErr)
			}
			return *st
		}
		if err != nil && err != ErrNotFound {
			log.Printf("global: remote fetch for %s: %v", key.StableKey(), err)
		}
	}

	cached, err := r.db.GetGlobalCache(key.StableKey())
	if err != nil {
		log.Printf("global: cache read for %s: %v", key.StableKey(), err)
	}
	if cached != nil {
		cached.Key.RegionTag = key.RegionTag
		return *cached
	}

	return vibe.DefaultGlobalState(key)
}
