// Package runlog archives completed research runs. Only run outcomes are
// stored; conversation history never touches the database.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// Run is one archived research run.
type Run struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	Query             string    `json:"query"`
	Intent            string    `json:"intent"`
	Success           bool      `json:"success"`
	CompletenessScore int       `json:"completeness_score"`
	SourcesUsed       []string  `json:"sources_used"`
	ExecutionTime     float64   `json:"execution_time"`
	CreatedAt         time.Time `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

// SaveRun inserts one run. A blank ID gets a fresh uuid and a zero CreatedAt
// is stamped with the current time.
func (s Store) SaveRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	query := `
INSERT INTO research_runs (id, session_id, query, intent, success, completeness_score, sources_used, execution_time, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`

	if _, err := s.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.SessionID,
		run.Query,
		run.Intent,
		run.Success,
		run.CompletenessScore,
		strings.Join(run.SourcesUsed, ","),
		run.ExecutionTime,
		run.CreatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("save research run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs, most recent first. Ties on created_at
// fall back to insertion order. Non-positive limits select the default.
func (s Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	query := `
SELECT id, session_id, query, intent, success, completeness_score, sources_used, execution_time, created_at
FROM research_runs
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list research runs: %w", err)
	}
	defer rows.Close()

	out := make([]Run, 0, limit)
	for rows.Next() {
		var run Run
		var sources, createdAt string
		if err := rows.Scan(
			&run.ID,
			&run.SessionID,
			&run.Query,
			&run.Intent,
			&run.Success,
			&run.CompletenessScore,
			&sources,
			&run.ExecutionTime,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan research run: %w", err)
		}
		if sources != "" {
			run.SourcesUsed = strings.Split(sources, ",")
		}
		if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
			run.CreatedAt = parsed
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate research runs: %w", err)
	}
	return out, nil
}
