package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goliatone/go-painpoint/internal/metrics"
	"github.com/goliatone/go-painpoint/painpoint"
	"github.com/uptrace/bun"
)

// Repository runs one statement per call against the pain point table.
// Statements use bun-formatted placeholders; caller values are never
// spliced into SQL text.
type Repository struct {
	conns  Connector
	logger *slog.Logger
}

// NewRepository creates a Repository. A nil logger uses slog.Default().
func NewRepository(conns Connector, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{conns: conns, logger: logger}
}

// SelectAll returns every record keyed by id.
func (r *Repository) SelectAll(ctx context.Context) (map[int32]painpoint.Record, error) {
	var out map[int32]painpoint.Record
	err := r.withConn(ctx, "select all", func(conn bun.Conn) error {
		rows, err := conn.QueryContext(ctx, "SELECT "+Columns+" FROM ? ORDER BY id", bun.Ident(painpoint.TableName))
		if err != nil {
			return err
		}
		defer rows.Close()

		out, err = rowsToMap(rows)
		return err
	})
	return out, err
}

// SelectByID returns the record with id, or ErrNotFound.
func (r *Repository) SelectByID(ctx context.Context, id int32) (painpoint.Record, error) {
	var out painpoint.Record
	err := r.withConn(ctx, "select by id", func(conn bun.Conn) error {
		row := conn.QueryRowContext(ctx, "SELECT "+Columns+" FROM ? WHERE id = ?", bun.Ident(painpoint.TableName), id)

		rec, err := rowToRecord(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

// SelectByClassID returns the records of classID ordered by id.
func (r *Repository) SelectByClassID(ctx context.Context, classID int32) ([]painpoint.Record, error) {
	var out []painpoint.Record
	err := r.withConn(ctx, "select by class", func(conn bun.Conn) error {
		rows, err := conn.QueryContext(ctx, "SELECT "+Columns+" FROM ? WHERE classid = ? ORDER BY id", bun.Ident(painpoint.TableName), classID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out, err = rowsToList(rows)
		return err
	})
	return out, err
}

// Insert writes a new record. It fails if the id already exists.
func (r *Repository) Insert(ctx context.Context, rec painpoint.Record) error {
	return r.withConn(ctx, "insert", func(conn bun.Conn) error {
		args := append([]any{bun.Ident(painpoint.TableName)}, InsertValues(rec)...)
		_, err := conn.ExecContext(ctx, "INSERT INTO ? ("+Columns+") VALUES (?, ?, ?, ?)", args...)
		return err
	})
}

// UpdateFlag sets the flag of record id. It returns ErrNotFound when no row changed.
func (r *Repository) UpdateFlag(ctx context.Context, id int32, flagged bool) error {
	return r.withConn(ctx, "update flag", func(conn bun.Conn) error {
		res, err := conn.ExecContext(ctx, "UPDATE ? SET thumbsdown = ? WHERE id = ?", bun.Ident(painpoint.TableName), flagged, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// withConn acquires a connection, runs fn, and releases the connection on every path.
func (r *Repository) withConn(ctx context.Context, op string, fn func(conn bun.Conn) error) error {
	conn, err := r.conns.Acquire(ctx)
	if err != nil {
		metrics.StoreOperations.WithLabelValues(op, metrics.Result(err)).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	defer r.conns.Release(conn)

	start := time.Now()
	err = fn(conn)
	metrics.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.StoreOperations.WithLabelValues(op, metrics.Result(err)).Inc()

	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Debug("statement failed", "op", op, "error", err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
