// Package store owns the SQLite backing store: connection lifecycle, the
// read-only / read-write execution split, live schema introspection, and the
// per-query resource bounds (timeout, row ceiling).
//
// The store holds two handles: a read-write one used only by WriteQuery, and
// a genuinely read-only one (mode=ro + query_only pragma) that serves every
// retrieval path. The keyword guard in guard.go is a second, best-effort
// layer on top of that split.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"cashops/internal/domain"
	"cashops/internal/metrics"

	_ "modernc.org/sqlite"
)

// Options bounds a single query execution.
type Options struct {
	Path          string
	QueryTimeout  time.Duration
	MaxResultRows int
	BusyTimeoutMs int
}

// Store is the exclusive owner of the backing-store handles for the lifetime
// of the server process. It never issues two concurrent mutating statements:
// the read-write handle is capped at one open connection.
type Store struct {
	rw      *sql.DB
	ro      *sql.DB
	timeout time.Duration
	maxRows int
	logger  *slog.Logger
}

// Column describes one column of a table, as reported by live introspection.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

// ResultSet holds the rows of a retrieval statement. Values are the driver's
// natural Go types with []byte normalized to string.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Open connects to the SQLite database at opts.Path. The database must
// already exist: this core assumes the schema, it never creates it. A
// failure here is fatal at startup.
func Open(opts Options, logger *slog.Logger) (*Store, error) {
	if _, err := os.Stat(opts.Path); err != nil {
		return nil, domain.WrapError(domain.ErrFatalStartup, err, "database not found at %s", opts.Path)
	}

	busyMs := opts.BusyTimeoutMs
	if busyMs <= 0 {
		busyMs = 5000
	}

	rw, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", opts.Path, busyMs))
	if err != nil {
		return nil, domain.WrapError(domain.ErrFatalStartup, err, "cannot open database: %v", err)
	}
	// Single writer: never two concurrent mutating statements.
	rw.SetMaxOpenConns(1)
	rw.SetMaxIdleConns(1)

	ro, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", opts.Path, busyMs))
	if err != nil {
		rw.Close()
		return nil, domain.WrapError(domain.ErrFatalStartup, err, "cannot open read-only handle: %v", err)
	}
	ro.SetMaxOpenConns(1)
	ro.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rw.PingContext(ctx); err != nil {
		rw.Close()
		ro.Close()
		return nil, domain.WrapError(domain.ErrFatalStartup, err, "cannot ping database: %v", err)
	}
	// Pin the single read-only connection to query_only so even a statement
	// that slips past the keyword guard cannot mutate.
	if _, err := ro.ExecContext(ctx, "PRAGMA query_only=ON"); err != nil {
		rw.Close()
		ro.Close()
		return nil, domain.WrapError(domain.ErrFatalStartup, err, "cannot set query_only: %v", err)
	}

	timeout := opts.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRows := opts.MaxResultRows
	if maxRows <= 0 {
		maxRows = 10000
	}

	logger.Info("store opened", "path", opts.Path, "queryTimeout", timeout, "maxResultRows", maxRows)

	return &Store{rw: rw, ro: ro, timeout: timeout, maxRows: maxRows, logger: logger}, nil
}

func (s *Store) Close() error {
	roErr := s.ro.Close()
	rwErr := s.rw.Close()
	if rwErr != nil {
		return rwErr
	}
	return roErr
}

// ListTables returns the user tables of the database in name order. The
// catalog is introspected live on every call, never cached.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.ro.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, s.classify(ctx, err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(ctx, err)
	}
	return tables, nil
}

// identPattern is the only shape of table name we will interpolate into a
// PRAGMA (PRAGMA arguments cannot be bound as parameters).
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DescribeTable returns the column layout of a table, or NotFound when the
// table does not exist.
func (s *Store) DescribeTable(ctx context.Context, name string) ([]Column, error) {
	if !identPattern.MatchString(name) {
		return nil, domain.NewError(domain.ErrInvalidArguments, "malformed table name: %q", name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var exists int
	err := s.ro.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`, name).Scan(&exists)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	if exists == 0 {
		return nil, domain.NewError(domain.ErrNotFound, "unknown table: %s", name)
	}

	rows, err := s.ro.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", name))
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, s.classify(ctx, err)
		}
		cols = append(cols, Column{
			Name:       colName,
			Type:       colType,
			NotNull:    notNull != 0,
			PrimaryKey: pk != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(ctx, err)
	}
	return cols, nil
}

// ReadQuery executes a single retrieval statement submitted by the external
// agent. Mutation statements are rejected before touching the store.
func (s *Store) ReadQuery(ctx context.Context, statement string) (*ResultSet, error) {
	if err := CheckReadOnly(statement); err != nil {
		return nil, err
	}
	return s.selectRows(ctx, statement)
}

// Select executes a parameterized retrieval statement on the read-only
// handle. This is the path the rule engine composes on; it carries the same
// timeout and row ceiling as ReadQuery.
func (s *Store) Select(ctx context.Context, statement string, args ...any) (*ResultSet, error) {
	return s.selectRows(ctx, statement, args...)
}

func (s *Store) selectRows(ctx context.Context, statement string, args ...any) (*ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.ro.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, s.classify(ctx, err)
	}

	rs := &ResultSet{Columns: cols, Rows: [][]any{}}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if len(rs.Rows) >= s.maxRows {
			// No truncated payloads: past the ceiling the whole result is refused.
			return nil, domain.NewError(domain.ErrResultTooLarge,
				"result exceeds the configured ceiling of %d rows", s.maxRows)
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, s.classify(ctx, err)
		}
		row := make([]any, len(cols))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
				continue
			}
			row[i] = v
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(ctx, err)
	}

	metrics.Collector.Counter("cashops_store_rows_returned_total", "Rows returned by retrieval statements", "").Add(int64(len(rs.Rows)))
	return rs, nil
}

// WriteQuery executes a single mutating statement inside a transaction and
// returns the number of affected rows. Any failure rolls the whole statement
// back: partial mutation never survives.
func (s *Store) WriteQuery(ctx context.Context, statement string) (int64, error) {
	if err := CheckSingleStatement(statement); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.rw.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.classify(ctx, err)
	}

	res, err := tx.ExecContext(ctx, statement)
	if err != nil {
		tx.Rollback()
		return 0, s.classify(ctx, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, s.classify(ctx, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, s.classify(ctx, err)
	}

	s.logger.Debug("write executed", "affected", affected)
	metrics.Collector.Counter("cashops_store_rows_affected_total", "Rows affected by write statements", "").Add(affected)
	return affected, nil
}

// classify maps a store failure to QueryTimeout when the per-query deadline
// fired, and to QueryError carrying the driver message otherwise.
func (s *Store) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrQueryTimeout, err, "query exceeded the %s timeout", s.timeout)
	}
	return domain.WrapError(domain.ErrQueryError, err, "%v", err)
}
