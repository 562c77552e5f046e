package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-painpoint/cache"
	"github.com/goliatone/go-painpoint/painpoint"
	"github.com/goliatone/go-painpoint/painpointcache"
	"github.com/goliatone/go-painpoint/store"
	"github.com/uptrace/bun"
)

// Config groups what the container needs to build the pain point service.
type Config struct {
	Store   store.Config
	Cache   cache.Config
	Deriver painpoint.Deriver
	Logger  *slog.Logger
}

// DefaultConfig returns a Config backed by a local sqlite file.
func DefaultConfig() Config {
	return Config{
		Store:   store.DefaultConfig(),
		Cache:   cache.DefaultConfig(),
		Deriver: painpoint.NewDeriver(nil),
	}
}

// Container owns the connection pool and every component built on it.
// It manages singleton instances of the provider, repository, lookup memo
// and service.
type Container struct {
	config        Config
	logger        *slog.Logger
	db            *bun.DB
	provider      *store.Provider
	schema        *store.Schema
	repository    *store.Repository
	lookups       cache.LookupService
	keySerializer cache.KeySerializer
	service       *painpointcache.Service
}

// NewContainer builds the component graph. It does not connect to the store;
// call EnsureSchema once at startup.
func NewContainer(config Config) (*Container, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lookups, err := cache.NewLookupService(config.Cache)
	if err != nil {
		return nil, fmt.Errorf("lookup memo: %w", err)
	}

	db, err := store.Open(config.Store)
	if err != nil {
		return nil, err
	}

	provider := store.NewProvider(db,
		store.WithLogger(logger),
		store.WithRetryBudget(config.Store.RetryBudget),
		store.WithConnectTimeout(config.Store.ConnectTimeout),
	)
	repo := store.NewRepository(provider, logger)
	keys := cache.NewDefaultKeySerializer()

	svc := painpointcache.New(repo,
		painpointcache.WithLogger(logger),
		painpointcache.WithDeriver(config.Deriver),
		painpointcache.WithLookupService(lookups),
		painpointcache.WithKeySerializer(keys),
	)

	return &Container{
		config:        config,
		logger:        logger,
		db:            db,
		provider:      provider,
		schema:        store.NewSchema(provider, logger),
		repository:    repo,
		lookups:       lookups,
		keySerializer: keys,
		service:       svc,
	}, nil
}

// NewContainerWithDefaults creates a container using DefaultConfig.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(DefaultConfig())
}

// EnsureSchema creates the pain point table if needed. A failure is logged
// by the schema and returned; the service keeps working degraded.
func (c *Container) EnsureSchema(ctx context.Context) error {
	return c.schema.EnsureTable(ctx)
}

func (c *Container) Service() *painpointcache.Service {
	return c.service
}

func (c *Container) Schema() *store.Schema {
	return c.schema
}

func (c *Container) Repository() *store.Repository {
	return c.repository
}

func (c *Container) Provider() *store.Provider {
	return c.provider
}

func (c *Container) LookupService() cache.LookupService {
	return c.lookups
}

func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// Close closes the connection pool.
func (c *Container) Close() error {
	return c.db.Close()
}
