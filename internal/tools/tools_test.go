package tools

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"cashops/internal/domain"
	"cashops/internal/rules"
	"cashops/internal/seed"
	"cashops/internal/store"

	_ "modernc.org/sqlite"
)

func newDispatcher(t *testing.T, maxRows int) *Dispatcher {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	if err := seed.CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close fixture db: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(store.Options{Path: path, QueryTimeout: 5 * time.Second, MaxResultRows: maxRows}, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	engine := rules.NewEngine(st, logger)
	return NewDispatcher(st, engine, rules.Thresholds{TrailingWindowDays: 28, CashSittingHours: 48}, logger)
}

func TestKindNamesRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		got, err := KindFromName(k.Name())
		if err != nil {
			t.Fatalf("KindFromName(%q) error = %v", k.Name(), err)
		}
		if got != k {
			t.Errorf("KindFromName(%q) = %v, want %v", k.Name(), got, k)
		}
	}
}

func TestKindFromNameUnknown(t *testing.T) {
	for _, name := range []string{"", "drop_tables", "read-query", "LIST_TABLES"} {
		if _, err := KindFromName(name); !domain.IsKind(err, domain.ErrUnknownTool) {
			t.Errorf("KindFromName(%q) error = %v, want unknown_tool", name, err)
		}
	}
}

func TestListAndDescribeReflectLiveSchema(t *testing.T) {
	d := newDispatcher(t, 1000)
	ctx := context.Background()

	result, err := d.Dispatch(ctx, KindListTables, nil)
	if err != nil {
		t.Fatalf("list_tables error = %v", err)
	}
	tables, ok := result.([]string)
	if !ok {
		t.Fatalf("list_tables returned %T, want []string", result)
	}

	want := map[string]bool{
		"locations": true, "carriers": true, "pickup_schedules": true,
		"deposits": true, "scheduled_pickups": true, "carrier_invoices": true,
	}
	for _, name := range tables {
		if !want[name] {
			t.Errorf("unexpected table %q listed", name)
		}
		delete(want, name)
	}
	for name := range want {
		t.Errorf("table %q missing from list_tables", name)
	}

	// Every listed table must be describable with at least one column.
	for _, name := range tables {
		result, err := d.Dispatch(ctx, KindDescribeTable, map[string]any{"table_name": name})
		if err != nil {
			t.Fatalf("describe_table(%s) error = %v", name, err)
		}
		cols, ok := result.([]store.Column)
		if !ok || len(cols) == 0 {
			t.Errorf("describe_table(%s) = %v, want non-empty column list", name, result)
		}
	}
}

func TestDescribeTableNotFound(t *testing.T) {
	d := newDispatcher(t, 1000)
	_, err := d.Dispatch(context.Background(), KindDescribeTable, map[string]any{"table_name": "no_such_table"})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want not_found", err)
	}
}

func TestDescribeTableArgumentValidation(t *testing.T) {
	d := newDispatcher(t, 1000)
	cases := []struct {
		name string
		args map[string]any
	}{
		{"missing", nil},
		{"empty", map[string]any{"table_name": ""}},
		{"wrong type", map[string]any{"table_name": 42}},
	}
	for _, c := range cases {
		if _, err := d.Dispatch(context.Background(), KindDescribeTable, c.args); !domain.IsKind(err, domain.ErrInvalidArguments) {
			t.Errorf("%s: error = %v, want invalid_arguments", c.name, err)
		}
	}
}

func TestReadQueryRejectsMutations(t *testing.T) {
	d := newDispatcher(t, 1000)
	ctx := context.Background()

	mutations := []string{
		"INSERT INTO locations (store_code, name, region, avg_daily_volume, pickup_frequency) VALUES ('999', 'x', 'r', 1, 1)",
		"update locations set name = 'x'",
		"DELETE FROM deposits",
		"DROP TABLE locations",
		"SELECT 1; DELETE FROM deposits",
	}
	for _, q := range mutations {
		if _, err := d.Dispatch(ctx, KindReadQuery, map[string]any{"query": q}); !domain.IsKind(err, domain.ErrForbiddenOperation) {
			t.Errorf("read_query(%q) error = %v, want forbidden_operation", q, err)
		}
	}

	// Keyword-shaped text inside literals and identifiers must pass.
	if _, err := d.Dispatch(ctx, KindReadQuery, map[string]any{"query": "SELECT 'insert into x' AS delete_note"}); err != nil {
		t.Errorf("read_query with quoted keywords error = %v", err)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	d := newDispatcher(t, 1000)
	ctx := context.Background()

	result, err := d.Dispatch(ctx, KindWriteQuery, map[string]any{
		"query": "INSERT INTO carriers (name, base_pickup_cost, per_mile_cost, max_daily_stops) VALUES ('Apex Secure', 22.0, 1.9, 28)",
	})
	if err != nil {
		t.Fatalf("write_query error = %v", err)
	}
	wr, ok := result.(WriteResult)
	if !ok || wr.RowsAffected != 1 {
		t.Fatalf("write_query = %+v, want 1 row affected", result)
	}

	read, err := d.Dispatch(ctx, KindReadQuery, map[string]any{
		"query": "SELECT name FROM carriers WHERE name = 'Apex Secure'",
	})
	if err != nil {
		t.Fatalf("read_query error = %v", err)
	}
	rs, ok := read.(*store.ResultSet)
	if !ok {
		t.Fatalf("read_query returned %T, want *store.ResultSet", read)
	}
	if len(rs.Rows) != 1 || rs.Rows[0][0] != "Apex Secure" {
		t.Fatalf("read back %+v, want the inserted carrier", rs.Rows)
	}
}

func TestReadQueryRowCeiling(t *testing.T) {
	d := newDispatcher(t, 5)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := d.Dispatch(ctx, KindWriteQuery, map[string]any{
			"query": "INSERT INTO carriers (name, base_pickup_cost, per_mile_cost, max_daily_stops) VALUES ('c" + string(rune('0'+i)) + "', 20.0, 2.0, 30)",
		})
		if err != nil {
			t.Fatalf("seed row %d: %v", i, err)
		}
	}

	// Over the ceiling: refused outright, no truncated payload.
	if _, err := d.Dispatch(ctx, KindReadQuery, map[string]any{"query": "SELECT * FROM carriers"}); !domain.IsKind(err, domain.ErrResultTooLarge) {
		t.Fatalf("error = %v, want result_too_large", err)
	}

	// At the ceiling: served in full.
	read, err := d.Dispatch(ctx, KindReadQuery, map[string]any{"query": "SELECT * FROM carriers LIMIT 5"})
	if err != nil {
		t.Fatalf("bounded read error = %v", err)
	}
	if rs := read.(*store.ResultSet); len(rs.Rows) != 5 {
		t.Fatalf("bounded read returned %d rows, want 5", len(rs.Rows))
	}
}

func TestMissedPickupsDateValidation(t *testing.T) {
	d := newDispatcher(t, 1000)
	ctx := context.Background()

	cases := []map[string]any{
		{"end_date": "2025-06-08"},
		{"start_date": "2025-06-02"},
		{"start_date": "06/02/2025", "end_date": "2025-06-08"},
		{"start_date": "2025-06-02", "end_date": 20250608},
	}
	for _, args := range cases {
		if _, err := d.Dispatch(ctx, KindMissedPickups, args); !domain.IsKind(err, domain.ErrInvalidArguments) {
			t.Errorf("detect_missed_pickups(%v) error = %v, want invalid_arguments", args, err)
		}
	}

	// Valid dates over an empty database: no findings, no error.
	result, err := d.Dispatch(ctx, KindMissedPickups, map[string]any{"start_date": "2025-06-02", "end_date": "2025-06-08"})
	if err != nil {
		t.Fatalf("detect_missed_pickups error = %v", err)
	}
	if missed := result.([]rules.MissedPickup); len(missed) != 0 {
		t.Fatalf("empty database produced %d missed pickups", len(missed))
	}
}

func TestRiskScoreDefaultsAsOfDate(t *testing.T) {
	d := newDispatcher(t, 1000)
	d.now = func() time.Time { return time.Date(2025, 6, 6, 12, 0, 0, 0, time.UTC) }

	if _, err := d.Dispatch(context.Background(), KindRiskScore, nil); err != nil {
		t.Fatalf("score_location_risk without as_of_date error = %v", err)
	}
	if _, err := d.Dispatch(context.Background(), KindRiskScore, map[string]any{"as_of_date": "not-a-date"}); !domain.IsKind(err, domain.ErrInvalidArguments) {
		t.Fatal("malformed as_of_date accepted")
	}
}
