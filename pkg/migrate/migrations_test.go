package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/angelmondragon/fuelstation-backend/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Embedded(), "."); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestValidateRejectsBrokenFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"create_tanks.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		},
		"unbalanced block": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")},
		},
		"bad timestamp": {
			"20261399000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		if err := migrate.ValidateFS(fsys, "."); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLedgerMigrationEnforcesOneSidedEntries(t *testing.T) {
	content := readMigration(t, "*_create_ledger.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS journal_entries",
		"FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE CASCADE",
		"((debit > 0) <> (credit > 0))",
		"ux_coa_station_name",
		"DROP TABLE IF EXISTS journal_entries",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestShiftMigrationGuardsOccupancy(t *testing.T) {
	content := readMigration(t, "*_create_shifts_and_deposits.sql")
	for _, sub := range []string{
		"ux_operator_shifts_station_day_slot",
		"ON operator_shifts (station_id)\n  WHERE status = 'STARTED'",
		"ON operator_shifts (operator_id)\n  WHERE status = 'STARTED'",
		"ux_nozzle_readings_shift_nozzle_type",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestTankReadingMigrationOneLiveReadingPerDay(t *testing.T) {
	content := readMigration(t, "*_create_inventory_events.sql")
	if !strings.Contains(content, "ON tank_readings (tank_id, operational_date)\n  WHERE status <> 'REJECTED'") {
		t.Fatalf("tank reading partial unique index missing")
	}
}

func TestPurchaseLitersMigration(t *testing.T) {
	content := readMigration(t, "*_purchase_liters.sql")
	for _, sub := range []string{
		"ADD COLUMN IF NOT EXISTS liters numeric(18,3)",
		"CHECK (liters IS NULL OR (type = 'PURCHASE' AND liters > 0))",
		"ON unloads (purchase_transaction_id)",
		"DROP COLUMN IF EXISTS liters",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Tank Calibration!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_tank_calibration.sql") {
		t.Fatalf("unexpected file name %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatalf("expected error for a name without usable characters")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one migration for %s, got %v", pattern, matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
