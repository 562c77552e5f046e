// Package config loads painpoint settings from a yaml file, PAINPOINT_
// environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-painpoint/cache"
	"github.com/goliatone/go-painpoint/painpoint"
	"github.com/goliatone/go-painpoint/store"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "PAINPOINT"

// Config is the full painpoint configuration.
type Config struct {
	Database    DatabaseConfig `mapstructure:"database" yaml:"database"`
	Cache       CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Identity    IdentityConfig `mapstructure:"identity" yaml:"identity"`
	LogLevel    string         `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string         `mapstructure:"log_format" yaml:"log_format"`
	MetricsAddr string         `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver" yaml:"driver"`
	DSN            string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns   int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	RetryBudget    int           `mapstructure:"retry_budget" yaml:"retry_budget"`
}

type CacheConfig struct {
	Capacity             int           `mapstructure:"capacity" yaml:"capacity"`
	NumShards            int           `mapstructure:"num_shards" yaml:"num_shards"`
	TTL                  time.Duration `mapstructure:"ttl" yaml:"ttl"`
	EvictionPercentage   int           `mapstructure:"eviction_percentage" yaml:"eviction_percentage"`
	MissingRecordStorage bool          `mapstructure:"missing_record_storage" yaml:"missing_record_storage"`
}

type IdentityConfig struct {
	Hash string `mapstructure:"hash" yaml:"hash"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	st := store.DefaultConfig()
	v.SetDefault("database.driver", st.Driver)
	v.SetDefault("database.dsn", st.DSN)
	v.SetDefault("database.max_open_conns", st.MaxOpenConns)
	v.SetDefault("database.connect_timeout", st.ConnectTimeout)
	v.SetDefault("database.retry_budget", st.RetryBudget)

	c := cache.DefaultConfig()
	v.SetDefault("cache.capacity", c.Capacity)
	v.SetDefault("cache.num_shards", c.NumShards)
	v.SetDefault("cache.ttl", c.TTL)
	v.SetDefault("cache.eviction_percentage", c.EvictionPercentage)
	v.SetDefault("cache.missing_record_storage", c.MissingRecordStorage)

	v.SetDefault("identity.hash", "xxhash")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("metrics_addr", ":9090")
}

// Configure wires env overrides into v and registers defaults.
func Configure(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, _ := Load(v)
	return cfg
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Database),
		validation.Field(&c.Cache),
		validation.Field(&c.Identity),
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.Required, validation.In("text", "json")),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(store.DriverSQLite, store.DriverPostgres)),
		validation.Field(&d.DSN, validation.Required),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
		validation.Field(&d.ConnectTimeout, validation.Min(time.Duration(0))),
		validation.Field(&d.RetryBudget, validation.Min(0)),
	)
}

// Validate defers to the lookup memo's own rules.
func (c CacheConfig) Validate() error {
	return c.toCache().Validate()
}

func (i IdentityConfig) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Hash, validation.Required, validation.In("xxhash", "java")),
	)
}

// StoreConfig converts the database section for store.Open.
func (c Config) StoreConfig() store.Config {
	return store.Config{
		Driver:         c.Database.Driver,
		DSN:            c.Database.DSN,
		MaxOpenConns:   c.Database.MaxOpenConns,
		ConnectTimeout: c.Database.ConnectTimeout,
		RetryBudget:    c.Database.RetryBudget,
	}
}

// CacheConfig converts the cache section for cache.NewLookupService.
func (c Config) CacheConfig() cache.Config {
	return c.Cache.toCache()
}

// Deriver returns the identity deriver selected by identity.hash.
func (c Config) Deriver() painpoint.Deriver {
	hash, _ := painpoint.HashByName(c.Identity.Hash)
	return painpoint.NewDeriver(hash)
}

func (c CacheConfig) toCache() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Capacity = c.Capacity
	cfg.NumShards = c.NumShards
	cfg.TTL = c.TTL
	cfg.EvictionPercentage = c.EvictionPercentage
	cfg.MissingRecordStorage = c.MissingRecordStorage
	return cfg
}
