package db

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	database, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	return database
}

func TestNew_CreatesDatabaseDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.sqlite")
	database, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()
}

func TestRunMigrations_CreatesExpectedTables(t *testing.T) {
	database := openTestDB(t)

	tables := []string{"payments", "payment_batches", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	database := openTestDB(t)

	if err := database.RunMigrations(); err != nil {
		t.Fatalf("second RunMigrations() call error = %v", err)
	}

	var count int
	if err := database.Conn().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 applied migration, got %d", count)
	}
}

func TestRunMigrations_EnforcesAccountClientUniqueness(t *testing.T) {
	database := openTestDB(t)

	insert := `INSERT INTO payments (id, client_id, account_name, status, recipient_address, amount, payment_id)
		VALUES (?, 'client-1', 'acct-1', 'Received', 'addr', 100, 'pay-1')`
	if _, err := database.Conn().Exec(insert, "id-1"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := database.Conn().Exec(insert, "id-2"); err == nil {
		t.Error("expected unique constraint violation on duplicate (account_name, client_id), got nil")
	}
}
