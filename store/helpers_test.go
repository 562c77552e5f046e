package store

import (
	"context"
	"testing"

	"github.com/goliatone/go-painpoint/pkg/testsupport"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// openTestDB opens a fresh sqlite database closed with the test.
func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := Open(Config{Driver: DriverSQLite, DSN: testsupport.SQLiteDSN(t), MaxOpenConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestRepository returns a repository over a freshly created table.
func newTestRepository(t *testing.T) (*Repository, *Provider) {
	t.Helper()
	provider := NewProvider(openTestDB(t))
	require.NoError(t, NewSchema(provider, nil).EnsureTable(context.Background()))
	return NewRepository(provider, nil), provider
}

// countingConnector records acquisitions and releases.
type countingConnector struct {
	inner    Connector
	acquired int
	released int
}

func (c *countingConnector) Acquire(ctx context.Context) (bun.Conn, error) {
	conn, err := c.inner.Acquire(ctx)
	if err == nil {
		c.acquired++
	}
	return conn, err
}

func (c *countingConnector) Release(conn bun.Conn) {
	c.released++
	c.inner.Release(conn)
}
