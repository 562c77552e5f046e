// Package cache holds the in-memory side of the pain point service.
//
// # Overview
//
// Two caches live here:
//
//   - Snapshot: a mirror of the pain point table keyed by record id, with a
//     classID index for per-class reads
//   - LookupService: a memo for point lookups that missed the snapshot,
//     backed by sturdyc, which also remembers ids the store does not have
//
// The Snapshot is either a complete copy of the table (after ReplaceAll) or
// such a copy plus point upserts since. It must never hold an id the store
// does not have, so callers Remove ids a forced read could not find.
//
// # Basic Usage
//
//	snap := cache.NewSnapshot()
//	snap.ReplaceAll(rowsFromStore)
//	snap.Upsert(justWritten)
//	forClass := snap.FilterByClassID(classID) // read-only
//
// The lookup memo is created from a validated Config:
//
//	lookups, err := cache.NewLookupService(cache.DefaultConfig())
//	key := cache.NewDefaultKeySerializer().SerializeKey("GetByID", id)
//	rec, err := cache.GetOrFetch(ctx, lookups, key, func(ctx context.Context) (painpoint.Record, error) {
//		return repo.SelectByID(ctx, id)
//	})
//
// A fetch function returns cache.ErrNotFound to report an absent record;
// IsMissing recognises both fresh and remembered misses.
//
// # Concurrency
//
// Snapshot guards its maps with a single RWMutex. Readers receive copies, so
// records handed out are never aliased with the snapshot's storage.
package cache
