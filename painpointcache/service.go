package painpointcache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/goliatone/go-painpoint/cache"
	"github.com/goliatone/go-painpoint/internal/metrics"
	"github.com/goliatone/go-painpoint/painpoint"
	"github.com/goliatone/go-painpoint/store"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

const methodGetByID = "GetByID"

// Write kinds reported in logs and metrics.
const (
	writeInsert = "insert"
	writeUpdate = "update"
)

// Store is the statement surface the service needs. *store.Repository
// implements it.
type Store interface {
	SelectAll(ctx context.Context) (map[int32]painpoint.Record, error)
	SelectByID(ctx context.Context, id int32) (painpoint.Record, error)
	SelectByClassID(ctx context.Context, classID int32) ([]painpoint.Record, error)
	Insert(ctx context.Context, rec painpoint.Record) error
	UpdateFlag(ctx context.Context, id int32, flagged bool) error
}

var _ Store = (*store.Repository)(nil)

// Service serves pain point reads from an in-memory snapshot and writes
// through to the store.
type Service struct {
	store       Store
	snapshot    *cache.Snapshot
	lookups     cache.LookupService
	keys        cache.KeySerializer
	keyRegistry *xsync.MapOf[string, struct{}]
	deriver     painpoint.Deriver
	logger      *slog.Logger

	// mu guards snapshot installs from the store and writes. A store read
	// and the snapshot change built from it happen under one hold.
	mu sync.Mutex
}

// New creates a Service over st. Without WithLookupService a sturdyc memo
// is built from cache.DefaultConfig.
func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:       st,
		snapshot:    cache.NewSnapshot(),
		keys:        cache.NewDefaultKeySerializer(),
		keyRegistry: xsync.NewMapOf[string, struct{}](),
		deriver:     painpoint.NewDeriver(nil),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.lookups == nil {
		lookups, err := cache.NewLookupService(cache.DefaultConfig())
		if err != nil {
			s.logger.Warn("lookup memo disabled", "error", err)
		} else {
			s.lookups = lookups
		}
	}
	return s
}

// Snapshot exposes the service snapshot.
func (s *Service) Snapshot() *cache.Snapshot {
	return s.snapshot
}

// Deriver returns the identity deriver in use.
func (s *Service) Deriver() painpoint.Deriver {
	return s.deriver
}

// ListAll returns every known record keyed by id. The snapshot is refreshed
// from the store when forcing, when it is empty or when it was never loaded.
// If the refresh fails the current snapshot is returned, which is empty on a
// cold cache.
func (s *Service) ListAll(ctx context.Context, forceRefresh bool) map[int32]painpoint.Record {
	if forceRefresh || s.snapshot.IsEmpty() || !s.snapshot.Loaded() {
		s.mu.Lock()
		_ = s.refresh(ctx)
		s.mu.Unlock()
	} else {
		metrics.ServiceReads.WithLabelValues(metrics.SourceSnapshot).Inc()
	}
	return s.snapshot.All()
}

// GetByID returns the record with id.
//
// Without forcing, the snapshot is consulted first and misses read through
// the lookup memo. Forcing queries the store, upserts the result into the
// snapshot, or removes id from it when the store no longer has the record.
func (s *Service) GetByID(ctx context.Context, forceRefresh bool, id int32) (painpoint.Record, bool) {
	if !forceRefresh {
		if rec, ok := s.snapshot.Get(id); ok {
			metrics.ServiceReads.WithLabelValues(metrics.SourceSnapshot).Inc()
			return rec, true
		}
		return s.lookup(ctx, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.ServiceReads.WithLabelValues(metrics.SourceStore).Inc()
	rec, err := s.store.SelectByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.snapshot.Remove(id)
		s.forgetID(ctx, id)
		s.updateGauge()
		return painpoint.Record{}, false
	case err != nil:
		s.logger.Warn("get painpoint failed", "id", id, "error", err)
		return painpoint.Record{}, false
	}

	s.snapshot.Upsert(rec)
	s.forgetID(ctx, id)
	s.updateGauge()
	return rec, true
}

// ListByClassID returns the records of classID ordered by id.
//
// Without forcing, the snapshot is filtered without modifying it; a snapshot
// that was never loaded is primed once first. Forcing queries the store and
// leaves the snapshot untouched.
func (s *Service) ListByClassID(ctx context.Context, forceRefresh bool, classID int32) []painpoint.Record {
	if !forceRefresh {
		s.prime(ctx)
		metrics.ServiceReads.WithLabelValues(metrics.SourceSnapshot).Inc()
		return s.snapshot.FilterByClassID(classID)
	}

	metrics.ServiceReads.WithLabelValues(metrics.SourceStore).Inc()
	records, err := s.store.SelectByClassID(ctx, classID)
	if err != nil {
		s.logger.Warn("list painpoints by class failed", "class_id", classID, "error", err)
		return []painpoint.Record{}
	}
	return records
}

// AddOrUpdate records userName's pain point flag for classID. It updates the
// user's existing record when the snapshot holds one for the class and
// inserts a new record otherwise; exactly one statement runs. It returns
// false when the write failed.
func (s *Service) AddOrUpdate(ctx context.Context, classID int32, userName string, flagged bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.deriver.RecordID(classID, userName)
	logger := s.logger.With(
		"write_id", uuid.NewString(),
		"id", id,
		"class_id", classID,
		"user", painpoint.NormalizeUser(userName),
		"flagged", flagged,
	)

	s.primeLocked(ctx)

	if existing, ok := s.findUserRecord(classID, userName); ok {
		err := s.store.UpdateFlag(ctx, existing.ID, flagged)
		metrics.ServiceWrites.WithLabelValues(writeUpdate, metrics.Result(err)).Inc()
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("painpoint vanished from store, dropping it from snapshot", "stored_id", existing.ID)
			s.snapshot.Remove(existing.ID)
			s.forgetID(ctx, existing.ID)
			s.updateGauge()
			return false
		}
		if err != nil {
			logger.Error("update painpoint failed", "stored_id", existing.ID, "error", err)
			return false
		}

		existing.Flagged = flagged
		s.snapshot.Upsert(existing)
		s.forgetID(ctx, existing.ID)
		logger.Info("painpoint updated", "stored_id", existing.ID)
		return true
	}

	rec := painpoint.Record{
		ID:       id,
		ClassID:  classID,
		UserName: userName,
		Flagged:  flagged,
	}
	err := s.store.Insert(ctx, rec)
	metrics.ServiceWrites.WithLabelValues(writeInsert, metrics.Result(err)).Inc()
	if err != nil {
		logger.Error("insert painpoint failed", "error", err)
		return false
	}

	s.snapshot.Upsert(rec)
	s.forgetID(ctx, id)
	s.updateGauge()
	logger.Info("painpoint inserted")
	return true
}

// HasPainPoint reports whether userName has flagged classID, according to
// the snapshot.
func (s *Service) HasPainPoint(ctx context.Context, classID int32, userName string) bool {
	s.prime(ctx)
	rec, ok := s.findUserRecord(classID, userName)
	return ok && rec.Flagged
}

// CountByClassID returns the number of flagged records for classID.
func (s *Service) CountByClassID(ctx context.Context, forceRefresh bool, classID int32) int {
	n := 0
	for _, rec := range s.ListByClassID(ctx, forceRefresh, classID) {
		if rec.Flagged {
			n++
		}
	}
	return n
}

// refresh replaces the snapshot with the store contents. Callers hold mu.
func (s *Service) refresh(ctx context.Context) error {
	metrics.ServiceReads.WithLabelValues(metrics.SourceStore).Inc()
	records, err := s.store.SelectAll(ctx)
	if err != nil {
		s.logger.Warn("refresh painpoints failed, serving snapshot",
			"error", err,
			"snapshot_records", s.snapshot.Len(),
		)
		return err
	}

	s.snapshot.ReplaceAll(records)
	s.updateGauge()
	s.invalidateByPrefix(ctx, cache.KeyPrefix(methodGetByID))
	s.logger.Debug("painpoint snapshot refreshed", "records", len(records))
	return nil
}

// prime loads the snapshot once if it was never loaded.
func (s *Service) prime(ctx context.Context) {
	if s.snapshot.Loaded() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primeLocked(ctx)
}

func (s *Service) primeLocked(ctx context.Context) {
	if !s.snapshot.Loaded() {
		_ = s.refresh(ctx)
	}
}

func (s *Service) findUserRecord(classID int32, userName string) (painpoint.Record, bool) {
	for _, rec := range s.snapshot.FilterByClassID(classID) {
		if rec.BelongsTo(userName) {
			return rec, true
		}
	}
	return painpoint.Record{}, false
}

// lookup reads id through the memo, or straight from the store without one.
func (s *Service) lookup(ctx context.Context, id int32) (painpoint.Record, bool) {
	metrics.ServiceReads.WithLabelValues(metrics.SourceLookup).Inc()

	fetch := func(ctx context.Context) (painpoint.Record, error) {
		rec, err := s.store.SelectByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return painpoint.Record{}, cache.ErrNotFound
		}
		return rec, err
	}

	var (
		rec painpoint.Record
		err error
	)
	if s.lookups == nil {
		rec, err = fetch(ctx)
	} else {
		key := s.keys.SerializeKey(methodGetByID, id)
		s.trackKey(key)
		rec, err = cache.GetOrFetch(ctx, s.lookups, key, fetch)
	}

	if cache.IsMissing(err) {
		return painpoint.Record{}, false
	}
	if err != nil {
		s.logger.Warn("lookup painpoint failed", "id", id, "error", err)
		return painpoint.Record{}, false
	}
	return rec, true
}

func (s *Service) trackKey(key string) {
	s.keyRegistry.Store(key, struct{}{})
}

// forgetID drops the memo entry for id.
func (s *Service) forgetID(ctx context.Context, id int32) {
	if s.lookups == nil {
		return
	}
	key := s.keys.SerializeKey(methodGetByID, id)
	if err := s.lookups.Delete(ctx, key); err != nil {
		s.logger.Debug("drop lookup key failed", "key", key, "error", err)
	}
	s.keyRegistry.Delete(key)
}

// invalidateByPrefix drops every tracked memo key starting with prefix.
func (s *Service) invalidateByPrefix(ctx context.Context, prefix string) {
	if s.lookups == nil {
		return
	}

	var keys []string
	s.keyRegistry.Range(func(key string, _ struct{}) bool {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return true
	})
	if len(keys) == 0 {
		return
	}

	if err := s.lookups.InvalidateKeys(ctx, keys); err != nil {
		s.logger.Debug("invalidate lookup keys failed", "prefix", prefix, "error", err)
	}
	for _, key := range keys {
		s.keyRegistry.Delete(key)
	}
}

func (s *Service) updateGauge() {
	metrics.SnapshotRecords.Set(float64(s.snapshot.Len()))
}
