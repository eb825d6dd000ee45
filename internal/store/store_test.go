package store

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"cashops/internal/domain"
	"cashops/internal/seed"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "store.db")
		db, err := sql.Open("sqlite", opts.Path)
		if err != nil {
			t.Fatalf("open fixture db: %v", err)
		}
		if err := seed.CreateSchema(context.Background(), db); err != nil {
			t.Fatalf("create schema: %v", err)
		}
		db.Close()
	}
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	if opts.MaxResultRows == 0 {
		opts.MaxResultRows = 1000
	}

	st, err := Open(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(Options{Path: filepath.Join(t.TempDir(), "absent.db")},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !domain.IsKind(err, domain.ErrFatalStartup) {
		t.Fatalf("Open() error = %v, want fatal_startup", err)
	}
}

func TestListTablesReflectsLiveSchema(t *testing.T) {
	st := newTestStore(t, Options{})
	ctx := context.Background()

	tables, err := st.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	found := map[string]bool{}
	for _, name := range tables {
		found[name] = true
	}
	for _, want := range []string{"locations", "carriers", "pickup_schedules", "deposits", "scheduled_pickups", "carrier_invoices"} {
		if !found[want] {
			t.Errorf("ListTables() missing %q", want)
		}
	}

	// A table created after opening shows up: introspection is live, not a
	// cached snapshot.
	if _, err := st.WriteQuery(ctx, "CREATE TABLE scratch_notes (id INTEGER PRIMARY KEY, note TEXT)"); err != nil {
		t.Fatalf("create scratch table: %v", err)
	}
	tables, err = st.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables() after create error = %v", err)
	}
	live := false
	for _, name := range tables {
		if name == "scratch_notes" {
			live = true
		}
	}
	if !live {
		t.Error("ListTables() does not reflect a freshly created table")
	}
}

func TestDescribeTable(t *testing.T) {
	st := newTestStore(t, Options{})
	cols, err := st.DescribeTable(context.Background(), "locations")
	if err != nil {
		t.Fatalf("DescribeTable() error = %v", err)
	}

	byName := map[string]Column{}
	for _, c := range cols {
		byName[c.Name] = c
	}
	id, ok := byName["id"]
	if !ok || !id.PrimaryKey {
		t.Errorf("locations.id = %+v, want primary key column", id)
	}
	code, ok := byName["store_code"]
	if !ok || !code.NotNull || code.Type != "TEXT" {
		t.Errorf("locations.store_code = %+v, want NOT NULL TEXT", code)
	}
	if lat, ok := byName["latitude"]; !ok || lat.NotNull {
		t.Errorf("locations.latitude = %+v, want nullable", lat)
	}
}

func TestDescribeTableNotFound(t *testing.T) {
	st := newTestStore(t, Options{})
	if _, err := st.DescribeTable(context.Background(), "no_such_table"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want not_found", err)
	}
}

func TestDescribeTableRejectsBadIdentifier(t *testing.T) {
	st := newTestStore(t, Options{})
	for _, name := range []string{"", "bad name", "x; DROP TABLE locations", "1table"} {
		if _, err := st.DescribeTable(context.Background(), name); !domain.IsKind(err, domain.ErrInvalidArguments) {
			t.Errorf("DescribeTable(%q) error = %v, want invalid_arguments", name, err)
		}
	}
}

func TestWriteThenRead(t *testing.T) {
	st := newTestStore(t, Options{})
	ctx := context.Background()

	affected, err := st.WriteQuery(ctx,
		`INSERT INTO carriers (name, base_pickup_cost, per_mile_cost, max_daily_stops) VALUES ('Apex Secure', 22.0, 1.9, 28)`)
	if err != nil {
		t.Fatalf("WriteQuery() error = %v", err)
	}
	if affected != 1 {
		t.Fatalf("WriteQuery() affected = %d, want 1", affected)
	}

	rs, err := st.ReadQuery(ctx, `SELECT name, max_daily_stops FROM carriers`)
	if err != nil {
		t.Fatalf("ReadQuery() error = %v", err)
	}
	if len(rs.Rows) != 1 {
		t.Fatalf("ReadQuery() returned %d rows, want 1", len(rs.Rows))
	}
	if rs.Rows[0][0] != "Apex Secure" {
		t.Errorf("read back name = %v, want Apex Secure", rs.Rows[0][0])
	}
	if rs.Columns[1] != "max_daily_stops" {
		t.Errorf("column[1] = %q, want max_daily_stops", rs.Columns[1])
	}
}

func TestReadQueryRowCeiling(t *testing.T) {
	st := newTestStore(t, Options{MaxResultRows: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := st.WriteQuery(ctx,
			`INSERT INTO carriers (name, base_pickup_cost, per_mile_cost, max_daily_stops) VALUES ('c`+string(rune('0'+i))+`', 20.0, 2.0, 30)`); err != nil {
			t.Fatalf("seed row %d: %v", i, err)
		}
	}

	if _, err := st.ReadQuery(ctx, `SELECT * FROM carriers`); !domain.IsKind(err, domain.ErrResultTooLarge) {
		t.Fatalf("error = %v, want result_too_large", err)
	}

	rs, err := st.ReadQuery(ctx, `SELECT * FROM carriers LIMIT 3`)
	if err != nil {
		t.Fatalf("bounded read error = %v", err)
	}
	if len(rs.Rows) != 3 {
		t.Fatalf("bounded read returned %d rows, want 3", len(rs.Rows))
	}
}

func TestWriteQueryRejectsBatches(t *testing.T) {
	st := newTestStore(t, Options{})
	_, err := st.WriteQuery(context.Background(),
		`INSERT INTO carriers (name, base_pickup_cost, per_mile_cost, max_daily_stops) VALUES ('a', 1, 1, 1); DROP TABLE carriers`)
	if !domain.IsKind(err, domain.ErrForbiddenOperation) {
		t.Fatalf("error = %v, want forbidden_operation", err)
	}
}

func TestQueryTimeoutClassified(t *testing.T) {
	st := newTestStore(t, Options{QueryTimeout: time.Nanosecond})
	_, err := st.ReadQuery(context.Background(), `SELECT 1`)
	if !domain.IsKind(err, domain.ErrQueryTimeout) {
		t.Fatalf("error = %v, want query_timeout", err)
	}
}
