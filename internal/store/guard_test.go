package store

import (
	"testing"

	"cashops/internal/domain"
)

func TestCheckReadOnly_AcceptsRetrieval(t *testing.T) {
	statements := []string{
		"SELECT * FROM locations",
		"select store_code, region from locations where region = 'North'",
		"  WITH recent AS (SELECT * FROM deposits) SELECT count(*) FROM recent",
		"SELECT * FROM deposits;",
		"EXPLAIN QUERY PLAN SELECT * FROM deposits",
	}
	for _, stmt := range statements {
		if err := CheckReadOnly(stmt); err != nil {
			t.Fatalf("expected %q to pass, got: %v", stmt, err)
		}
	}
}

func TestCheckReadOnly_RejectsMutations(t *testing.T) {
	statements := []string{
		"INSERT INTO locations VALUES (1)",
		"UPDATE locations SET region = 'South'",
		"DELETE FROM deposits",
		"DROP TABLE deposits",
		"CREATE TABLE x (id INTEGER)",
		"ALTER TABLE deposits ADD COLUMN note TEXT",
		"REPLACE INTO deposits VALUES (1)",
		"ATTACH DATABASE '/tmp/x.db' AS other",
		"PRAGMA journal_mode = DELETE",
		"  insert into deposits values (1)",
	}
	for _, stmt := range statements {
		err := CheckReadOnly(stmt)
		if err == nil {
			t.Fatalf("expected %q to be rejected", stmt)
		}
		if !domain.IsKind(err, domain.ErrForbiddenOperation) {
			t.Fatalf("expected ForbiddenOperation for %q, got: %v", stmt, err)
		}
	}
}

func TestCheckReadOnly_KeywordInsideLiteralIsFine(t *testing.T) {
	stmt := "SELECT * FROM locations WHERE name = 'UPDATE DEPOT'"
	if err := CheckReadOnly(stmt); err != nil {
		t.Fatalf("keyword inside string literal should pass: %v", err)
	}
}

func TestCheckReadOnly_KeywordAsIdentifierSubstringIsFine(t *testing.T) {
	stmt := "SELECT last_update, deleted_at FROM pragma_settings"
	if err := CheckReadOnly(stmt); err != nil {
		t.Fatalf("identifier substrings should pass: %v", err)
	}
}

func TestCheckReadOnly_RejectsNonRetrievalVerb(t *testing.T) {
	err := CheckReadOnly("ANALYZE locations")
	if !domain.IsKind(err, domain.ErrForbiddenOperation) {
		t.Fatalf("expected ForbiddenOperation, got: %v", err)
	}
}

func TestCheckSingleStatement_RejectsBatch(t *testing.T) {
	err := CheckSingleStatement("SELECT 1; DROP TABLE locations")
	if !domain.IsKind(err, domain.ErrForbiddenOperation) {
		t.Fatalf("expected ForbiddenOperation for batch, got: %v", err)
	}
}

func TestCheckSingleStatement_TrailingSemicolonOK(t *testing.T) {
	if err := CheckSingleStatement("UPDATE locations SET region = 'x';"); err != nil {
		t.Fatalf("trailing semicolon should pass: %v", err)
	}
}

func TestCheckSingleStatement_SemicolonInLiteralOK(t *testing.T) {
	if err := CheckSingleStatement("SELECT * FROM locations WHERE name = 'a;b'"); err != nil {
		t.Fatalf("semicolon inside literal should pass: %v", err)
	}
}

func TestCheckSingleStatement_Empty(t *testing.T) {
	err := CheckSingleStatement("   ")
	if !domain.IsKind(err, domain.ErrInvalidArguments) {
		t.Fatalf("expected InvalidArguments for empty statement, got: %v", err)
	}
}
