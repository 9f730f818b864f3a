package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCapturesPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "ux_tank_readings_tank_day_live",
		TableName:      "tank_readings",
		Message:        "duplicate key value violates unique constraint",
	}
	err := fmt.Errorf("insert reading: %w", pgErr)

	d := Dump(err)
	if d.PGCode != "23505" || d.PGConstraint != "ux_tank_readings_tank_day_live" || d.PGTable != "tank_readings" {
		t.Fatalf("unexpected dump %+v", d)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries got %d", len(d.Chain))
	}
}

func TestFromDatabase(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "pgx unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "ux_coa_station_name"}, want: CodeConflict},
		{name: "pq foreign key", err: &pq.Error{Code: "23503", Constraint: "fk_journal_entries_transaction"}, want: CodeValidation},
		{name: "pgx check", err: &pgconn.PgError{Code: "23514", ConstraintName: "chk_journal_entries_one_side"}, want: CodeIntegrity},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: CodeDependency},
	}
	for _, tt := range tests {
		got := FromDatabase(fmt.Errorf("wrapped: %w", tt.err))
		if got == nil {
			t.Fatalf("%s: expected typed error", tt.name)
		}
		if got.Code() != tt.want {
			t.Fatalf("%s: expected %s got %s", tt.name, tt.want, got.Code())
		}
	}
}

func TestFromDatabaseIgnoresOtherErrors(t *testing.T) {
	if FromDatabase(stdErrors.New("connection reset")) != nil {
		t.Fatalf("plain errors should not translate")
	}
	if FromDatabase(&pgconn.PgError{Code: "42P01"}) != nil {
		t.Fatalf("undefined table should not translate")
	}
}
