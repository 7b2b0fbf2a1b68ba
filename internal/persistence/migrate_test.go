package persistence

import (
	"testing"
)

func TestLoadMigrationsOrdered(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) < 3 {
		t.Fatalf("expected at least 3 embedded migrations, got %d", len(migrations))
	}

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			t.Errorf("migrations out of order: version %d follows %d",
				migrations[i].Version, migrations[i-1].Version)
		}
	}
	for _, m := range migrations {
		if m.Description == "" {
			t.Errorf("migration %d has no description", m.Version)
		}
		if m.SQL == "" {
			t.Errorf("migration %d has empty SQL", m.Version)
		}
	}
}

func TestFindPendingMigrations(t *testing.T) {
	available := []Migration{
		{Version: 1, Description: "one"},
		{Version: 2, Description: "two"},
		{Version: 3, Description: "three"},
	}

	pending := findPendingMigrations(available, []int{1})
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending migrations, got %d", len(pending))
	}
	if pending[0].Version != 2 || pending[1].Version != 3 {
		t.Errorf("pending versions = %d, %d; want 2, 3", pending[0].Version, pending[1].Version)
	}

	// A fully applied set yields nothing, so re-running is a no-op.
	if again := findPendingMigrations(available, []int{1, 2, 3}); len(again) != 0 {
		t.Errorf("expected no pending migrations when all applied, got %d", len(again))
	}

	if all := findPendingMigrations(available, nil); len(all) != len(available) {
		t.Errorf("expected all migrations pending on fresh database, got %d", len(all))
	}
}
