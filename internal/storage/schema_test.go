package storage

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestInitSchema(t *testing.T) {
	t.Parallel()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	for i := 0; i < 3; i++ {
		if err := InitSchema(db); err != nil {
			t.Fatalf("InitSchema call %d failed: %v", i+1, err)
		}
	}

	for _, table := range []string{"moderation_decisions", "secrets"} {
		var name string
		if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	for _, idx := range []string{"idx_decisions_target", "idx_decisions_report"} {
		var name string
		if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&name); err != nil {
			t.Errorf("index %s not found: %v", idx, err)
		}
	}
}
