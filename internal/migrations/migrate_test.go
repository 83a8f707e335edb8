package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/somersetwc/website/internal/db"
)

func TestUpCreatesTablesAndIsRepeatable(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	for i := 0; i < 2; i++ {
		if err := Up(context.Background(), database); err != nil {
			t.Fatalf("Up (run %d): %v", i, err)
		}
	}

	for _, table := range []string{"users", "service_areas", "leads", "booking_drafts", "ads_daily_metrics", "ads_actions"} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
