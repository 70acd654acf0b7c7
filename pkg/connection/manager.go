// Package connection provides the shared database connection that table
// views read from.
package connection

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nnnkkk7/geoquery/pkg/dialect"
)

// Manager wraps the connection pool shared by every table view of a data
// source.
//
// Reads are not serialized: each table view opens its own statement and
// the driver's pool decides how they share connections. Writes issued
// through Exec and ExecTx are serialized so that embedded backends such as
// DuckDB and SQLite see one writer at a time.
type Manager struct {
	db      *sql.DB
	kind    dialect.Kind
	logger  zerolog.Logger
	writeMu sync.Mutex
}

// NewManager creates a connection manager for db, a pool opened for kind.
func NewManager(db *sql.DB, kind dialect.Kind, logger zerolog.Logger) *Manager {
	return &Manager{db: db, kind: kind, logger: logger}
}

// Kind returns the backend kind of the connection.
func (m *Manager) Kind() dialect.Kind {
	return m.kind
}

// Query executes a read query. Multiple goroutines can call Query
// simultaneously.
func (m *Manager) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	m.logger.Trace().Str("query", query).Int("params", len(args)).Msg("query")
	return m.db.QueryContext(ctx, query, args...)
}

// Exec executes a write operation (serialized).
func (m *Manager) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.logger.Trace().Str("query", query).Int("params", len(args)).Msg("exec")
	return m.db.ExecContext(ctx, query, args...)
}

// ExecScript executes statements in order in one transaction. The first
// failure rolls back the statements before it. Backends that commit DDL
// implicitly, such as MySQL, keep whatever DDL already ran.
//
// A single statement runs outside a transaction, so statements a backend
// refuses inside one (CREATE INDEX CONCURRENTLY, VACUUM) still work.
func (m *Manager) ExecScript(ctx context.Context, statements ...string) error {
	if len(statements) == 1 {
		if _, err := m.Exec(ctx, statements[0]); err != nil {
			return fmt.Errorf("statement 1: %w", err)
		}
		return nil
	}
	return m.ExecTx(ctx, func(tx *sql.Tx) error {
		for i, stmt := range statements {
			m.logger.Trace().Str("query", stmt).Int("statement", i+1).Msg("exec script")
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// ExecTx executes fn in a transaction, serialized with other writes.
// If fn returns an error, the transaction is rolled back.
func (m *Manager) ExecTx(ctx context.Context, fn func(*sql.Tx) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logger.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	return tx.Commit()
}

// Ping verifies the backend is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// DB returns the underlying pool.
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Close closes the pool.
func (m *Manager) Close() error {
	return m.db.Close()
}
