package painpointcache

import (
	"log/slog"

	"github.com/goliatone/go-painpoint/cache"
	"github.com/goliatone/go-painpoint/painpoint"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDeriver sets the identity deriver used by AddOrUpdate and HasPainPoint.
func WithDeriver(d painpoint.Deriver) Option {
	return func(s *Service) {
		s.deriver = d
	}
}

// WithLookupService replaces the default sturdyc lookup memo.
func WithLookupService(lookups cache.LookupService) Option {
	return func(s *Service) {
		if lookups != nil {
			s.lookups = lookups
		}
	}
}

// WithKeySerializer sets the serializer for lookup memo keys.
func WithKeySerializer(keys cache.KeySerializer) Option {
	return func(s *Service) {
		if keys != nil {
			s.keys = keys
		}
	}
}

// WithSnapshot shares an existing snapshot with the service.
func WithSnapshot(snapshot *cache.Snapshot) Option {
	return func(s *Service) {
		if snapshot != nil {
			s.snapshot = snapshot
		}
	}
}
