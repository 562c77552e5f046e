package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-painpoint/internal/metrics"
	"github.com/goliatone/go-painpoint/painpoint"
	"github.com/uptrace/bun"
)

// Schema manages the pain point table.
type Schema struct {
	conns  Connector
	logger *slog.Logger
}

// NewSchema creates a Schema. A nil logger uses slog.Default().
func NewSchema(conns Connector, logger *slog.Logger) *Schema {
	if logger == nil {
		logger = slog.Default()
	}
	return &Schema{conns: conns, logger: logger}
}

// EnsureTable creates the table if it does not exist. It is idempotent.
// Failures are logged and returned; callers treat them as non-fatal.
func (s *Schema) EnsureTable(ctx context.Context) error {
	err := s.exec(ctx, "create table", func(ctx context.Context, c bun.Conn) error {
		_, err := c.NewCreateTable().
			Model((*painpoint.Record)(nil)).
			IfNotExists().
			Exec(ctx)
		return err
	})
	if err != nil {
		s.logger.Warn("ensure painpoint table failed, continuing degraded", "error", err)
		return err
	}
	s.logger.Debug("painpoint table ready", "table", painpoint.TableName)
	return nil
}

// ResetTable drops the table and recreates it empty. Bootstrap and tests only.
func (s *Schema) ResetTable(ctx context.Context) error {
	err := s.exec(ctx, "drop table", func(ctx context.Context, c bun.Conn) error {
		_, err := c.NewDropTable().
			Model((*painpoint.Record)(nil)).
			IfExists().
			Exec(ctx)
		return err
	})
	if err != nil {
		s.logger.Warn("drop painpoint table failed", "error", err)
		return err
	}
	s.logger.Info("painpoint table dropped", "table", painpoint.TableName)
	return s.EnsureTable(ctx)
}

func (s *Schema) exec(ctx context.Context, op string, fn func(context.Context, bun.Conn) error) error {
	conn, err := s.conns.Acquire(ctx)
	if err != nil {
		metrics.SchemaErrors.Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	defer s.conns.Release(conn)

	if err := fn(ctx, conn); err != nil {
		metrics.SchemaErrors.Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
