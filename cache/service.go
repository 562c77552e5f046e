package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-painpoint/internal/cacheinfra"
)

// ErrInvalidResultType is returned when a memoized value does not have the requested type.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// ErrNotFound is returned by a fetch function when the store has no record for the key.
var ErrNotFound = cacheinfra.ErrNotFound

// IsMissing reports whether err means the looked-up record does not exist.
func IsMissing(err error) bool {
	return cacheinfra.IsMissing(err)
}

// KeySerializer builds a lookup key from a method name + arguments.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature LookupService expects when fetching from the store.
type FetchFn[T any] func(ctx context.Context) (T, error)

// LookupService memoizes point lookups that missed the snapshot.
// Implementations must coalesce concurrent fetches for the same key.
type LookupService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error)
	Delete(ctx context.Context, key string) error
	InvalidateKeys(ctx context.Context, keys []string) error
}

// GetOrFetch is a type-safe wrapper around LookupService.GetOrFetch.
func GetOrFetch[T any](ctx context.Context, service LookupService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T

	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		v, err := fetchFn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}

	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: want %T, got %T", ErrInvalidResultType, zero, result)
	}
	return typed, nil
}
