package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"web3research/backend/internal/config"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// research_runs is created on open so a fresh database works without a
// separate migration step.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS research_runs (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    query TEXT NOT NULL,
    intent TEXT NOT NULL,
    success INTEGER NOT NULL,
    completeness_score INTEGER NOT NULL,
    sources_used TEXT NOT NULL,
    execution_time REAL NOT NULL,
    created_at TEXT NOT NULL
);`,
	`CREATE INDEX IF NOT EXISTS idx_research_runs_created_at ON research_runs (created_at DESC);`,
}

// Open connects to the run archive. file: URLs use the embedded sqlite
// driver; libsql:// and remote URLs go through the libsql client.
func Open(cfg config.Config) (*sql.DB, error) {
	dsn, err := buildDSN(cfg.DatabaseURL, cfg.DatabaseAuthToken)
	if err != nil {
		return nil, err
	}

	database, err := sql.Open(driverFor(dsn), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	for _, stmt := range migrations {
		if _, err := database.ExecContext(context.Background(), stmt); err != nil {
			return nil, fmt.Errorf("migrate db: %w", err)
		}
	}

	return database, nil
}

func driverFor(dsn string) string {
	if strings.HasPrefix(dsn, "file:") {
		return "sqlite"
	}
	return "libsql"
}

func buildDSN(rawURL, authToken string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", fmt.Errorf("empty database url")
	}

	if strings.HasPrefix(rawURL, "file:") {
		return rawURL, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}

	if strings.HasPrefix(rawURL, "libsql://") {
		query := parsed.Query()
		if query.Get("authToken") == "" && strings.TrimSpace(authToken) != "" {
			query.Set("authToken", strings.TrimSpace(authToken))
			parsed.RawQuery = query.Encode()
		}
	}

	return parsed.String(), nil
}
