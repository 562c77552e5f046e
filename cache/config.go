package cache

import (
	"time"

	"github.com/goliatone/go-painpoint/internal/cacheinfra"
)

// Config sizes the lookup memo that answers GetByID misses on the snapshot.
// The memo sits between the snapshot and the store: it remembers what the
// store said about an id, including that it had no record.
type Config struct {
	// Capacity bounds how many ids the memo remembers. Must be greater than 0.
	Capacity int

	// NumShards splits the memo for concurrent lookups. Must be greater
	// than 0 and not exceed Capacity.
	NumShards int

	// TTL is how long a remembered answer is served before the store is
	// asked about that id again.
	TTL time.Duration

	// EvictionPercentage is the share of ids dropped once Capacity is hit,
	// from 1 to 100.
	EvictionPercentage int

	// EarlyRefresh re-reads hot ids from the store before their TTL runs out.
	// Nil leaves it off.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage remembers ids the store has no row for, so a class
	// nobody flagged costs one query per TTL.
	MissingRecordStorage bool

	// EvictionInterval is the sweep period for expired ids. Zero keeps the
	// sturdyc default.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig bounds when a remembered id is re-read in the
// background and when a lookup waits for a fresh read instead.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns the memo settings used when a service is built
// without an explicit lookup service.
func DefaultConfig() Config {
	return fromInternal(cacheinfra.DefaultConfig())
}

// Validate reports the first setting the memo would refuse.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewLookupService builds the sturdyc-backed lookup memo described by cfg.
func NewLookupService(cfg Config) (LookupService, error) {
	svc, err := cacheinfra.NewLookupService(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		EarlyRefresh:         c.EarlyRefresh.toInternal(),
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
}

func (e *EarlyRefreshConfig) toInternal() *cacheinfra.EarlyRefreshConfig {
	if e == nil {
		return nil
	}
	out := cacheinfra.EarlyRefreshConfig(*e)
	return &out
}

func fromInternal(cfg cacheinfra.Config) Config {
	c := Config{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
	}
	if cfg.EarlyRefresh != nil {
		early := EarlyRefreshConfig(*cfg.EarlyRefresh)
		c.EarlyRefresh = &early
	}
	return c
}
