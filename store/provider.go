package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goliatone/go-painpoint/internal/metrics"
	"github.com/uptrace/bun"
)

// Connector hands out pooled connections. Every Acquire that succeeds must be
// paired with a Release.
type Connector interface {
	Acquire(ctx context.Context) (bun.Conn, error)
	Release(conn bun.Conn)
}

// Dialer obtains a connection from the pool.
type Dialer func(ctx context.Context) (bun.Conn, error)

// ProviderStats is a point-in-time view of the provider's backoff state.
type ProviderStats struct {
	Unreachable bool
	RetryCount  int
	RetryBudget int
}

// Provider gates connection attempts behind a sticky unreachable flag.
//
// While the store is reachable every Acquire dials. Once a dial fails with an
// unreachable-class error, the next RetryBudget calls return ErrUnavailable
// without dialing; the call after that probes again and resets the counter
// whatever the outcome. A successful probe clears the flag.
type Provider struct {
	mu          sync.Mutex
	dial        Dialer
	unreachable bool
	retryCount  int
	retryBudget int
	timeout     time.Duration
	logger      *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger sets the logger used for state transitions.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRetryBudget sets how many calls are refused before re-probing an unreachable store.
func WithRetryBudget(budget int) ProviderOption {
	return func(p *Provider) {
		if budget >= 0 {
			p.retryBudget = budget
		}
	}
}

// WithConnectTimeout bounds each dial.
func WithConnectTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithDialer replaces the pool dialer.
func WithDialer(dial Dialer) ProviderOption {
	return func(p *Provider) {
		if dial != nil {
			p.dial = dial
		}
	}
}

// NewProvider creates a Provider drawing connections from db.
func NewProvider(db *bun.DB, opts ...ProviderOption) *Provider {
	p := &Provider{
		retryBudget: DefaultRetryBudget,
		timeout:     DefaultConnectTimeout,
		logger:      slog.Default(),
	}
	if db != nil {
		p.dial = db.Conn
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dial == nil {
		p.dial = func(context.Context) (bun.Conn, error) {
			return bun.Conn{}, fmt.Errorf("%w: no connection pool configured", ErrUnavailable)
		}
	}
	return p
}

// Acquire returns a pooled connection or an error wrapping ErrUnavailable
// when the store is unreachable or the call was rationed.
func (p *Provider) Acquire(ctx context.Context) (bun.Conn, error) {
	if !p.admit() {
		metrics.StoreConnections.WithLabelValues(metrics.ConnectionSkipped).Inc()
		return bun.Conn{}, ErrUnavailable
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(dialCtx)
	if unreachable := p.record(err); unreachable {
		return bun.Conn{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		return bun.Conn{}, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// Release returns conn to the pool.
func (p *Provider) Release(conn bun.Conn) {
	if conn.Conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		p.logger.Warn("release connection", "error", err)
	}
}

// Stats reports the current backoff state.
func (p *Provider) Stats() ProviderStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProviderStats{
		Unreachable: p.unreachable,
		RetryCount:  p.retryCount,
		RetryBudget: p.retryBudget,
	}
}

// admit decides whether this call may dial.
func (p *Provider) admit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.unreachable {
		return true
	}

	if p.retryCount < p.retryBudget {
		p.retryCount++
		p.logger.Debug("store unreachable, skipping connection attempt",
			"retry_count", p.retryCount,
			"retry_budget", p.retryBudget,
		)
		return false
	}

	p.retryCount = 0
	p.logger.Info("probing unreachable store", "retry_budget", p.retryBudget)
	return true
}

// record applies the outcome of a dial and reports whether the store is
// now considered unreachable.
func (p *Provider) record(err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err == nil {
		if p.unreachable {
			p.logger.Info("store reachable again")
		}
		p.unreachable = false
		metrics.StoreUnreachable.Set(0)
		metrics.StoreConnections.WithLabelValues(metrics.ConnectionOK).Inc()
		return false
	}

	if isUnreachable(err) {
		if !p.unreachable {
			p.logger.Warn("store unreachable, rationing connection attempts",
				"error", err,
				"retry_budget", p.retryBudget,
			)
		} else {
			p.logger.Debug("store still unreachable", "error", err)
		}
		p.unreachable = true
		metrics.StoreUnreachable.Set(1)
		metrics.StoreConnections.WithLabelValues(metrics.ConnectionUnreachable).Inc()
		return true
	}

	p.logger.Warn("acquire connection failed", "error", err)
	metrics.StoreConnections.WithLabelValues(metrics.ConnectionFailed).Inc()
	return false
}
