// Package db provides database connection helpers, schema migration, and the
// Postgres-backed session and invite-link stores.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the given DSN. The DSN comes from
// config so there is a single source of truth for it.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database DSN")
	}
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and indices.
// It is the fallback for deployments without the versioned migration table.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS verification_sessions (
			id SERIAL PRIMARY KEY,
			session_token TEXT NOT NULL UNIQUE,
			telegram_user_id BIGINT NOT NULL,
			telegram_chat_id BIGINT NOT NULL,
			provider TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS invite_links (
			id SERIAL PRIMARY KEY,
			invite_link TEXT NOT NULL UNIQUE,
			telegram_user_id BIGINT NOT NULL,
			twitch_user_id TEXT,
			patreon_user_id TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_token ON verification_sessions(session_token)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON verification_sessions(telegram_user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_links_user ON invite_links(telegram_user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_links_twitch ON invite_links(twitch_user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_links_patreon ON invite_links(patreon_user_id)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}
