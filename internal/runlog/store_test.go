package runlog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"web3research/backend/internal/config"
	"web3research/backend/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	cfg := config.Config{DatabaseURL: "file:" + filepath.Join(t.TempDir(), "runs.db")}
	database, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSaveRunAssignsIDAndTimestamp(t *testing.T) {
	store := NewStore(openTestDB(t))

	err := store.SaveRun(context.Background(), Run{
		SessionID:         "session-1",
		Query:             "bitcoin price",
		Intent:            "market_data",
		Success:           true,
		CompletenessScore: 75,
		SourcesUsed:       []string{"coinmarketcap", "dune_analytics"},
		ExecutionTime:     1.42,
	})
	if err != nil {
		t.Fatalf("save run: %v", err)
	}

	runs, err := store.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}

	got := runs[0]
	if got.ID == "" {
		t.Fatalf("expected generated run id")
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected stamped created_at")
	}
	if got.CompletenessScore != 75 {
		t.Fatalf("completeness = %d, want 75", got.CompletenessScore)
	}
	if len(got.SourcesUsed) != 2 || got.SourcesUsed[0] != "coinmarketcap" || got.SourcesUsed[1] != "dune_analytics" {
		t.Fatalf("unexpected sources: %v", got.SourcesUsed)
	}
	if got.ExecutionTime != 1.42 {
		t.Fatalf("execution time = %v, want 1.42", got.ExecutionTime)
	}
}

func TestRecentRunsOrdersNewestFirst(t *testing.T) {
	store := NewStore(openTestDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, query := range []string{"first", "second", "third"} {
		err := store.SaveRun(context.Background(), Run{
			ID:        query,
			SessionID: "session-1",
			Query:     query,
			Intent:    "general",
			Success:   true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("save run %s: %v", query, err)
		}
	}

	runs, err := store.RecentRuns(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Query != "third" || runs[1].Query != "second" {
		t.Fatalf("unexpected order: %s, %s", runs[0].Query, runs[1].Query)
	}
}

func TestRecentRunsBreaksTimestampTiesByInsertionOrder(t *testing.T) {
	store := NewStore(openTestDB(t))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"older", "newer"} {
		err := store.SaveRun(context.Background(), Run{
			ID:        id,
			SessionID: "session-1",
			Query:     id,
			Intent:    "general",
			CreatedAt: at,
		})
		if err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}

	runs, err := store.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "newer" {
		t.Fatalf("expected newer run first, got %+v", runs)
	}
}

func TestRecentRunsEmptySourcesStayEmpty(t *testing.T) {
	store := NewStore(openTestDB(t))

	err := store.SaveRun(context.Background(), Run{
		SessionID: "session-1",
		Query:     "hello",
		Intent:    "greeting",
		Success:   true,
	})
	if err != nil {
		t.Fatalf("save run: %v", err)
	}

	runs, err := store.RecentRuns(context.Background(), 1)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if len(runs[0].SourcesUsed) != 0 {
		t.Fatalf("expected no sources, got %v", runs[0].SourcesUsed)
	}
}
