package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type migration struct {
	version int
	name    string
	sql     string
}

func migrations() []migration {
	return []migration{
		{
			version: 1,
			name:    "create_workflows",
			sql: `
				CREATE TABLE IF NOT EXISTS workflows (
					id             TEXT PRIMARY KEY,
					guild_id       TEXT NOT NULL,
					name           TEXT NOT NULL,
					trigger_type   TEXT NOT NULL,
					trigger_config JSONB NOT NULL DEFAULT '{}'::jsonb,
					action_type    TEXT NOT NULL,
					action_config  JSONB NOT NULL DEFAULT '{}'::jsonb,
					created_by     TEXT NOT NULL,
					is_enabled     BOOLEAN NOT NULL DEFAULT false,
					created_at     TIMESTAMPTZ NOT NULL,
					updated_at     TIMESTAMPTZ NOT NULL
				)
			`,
		},
		{
			version: 2,
			name:    "index_workflows_trigger_matching",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_workflows_trigger_matching
					ON workflows (trigger_type, is_enabled)
			`,
		},
	}
}

func runMigrations(ctx context.Context, logger *slog.Logger, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range migrations() {
		var applied bool

		err = db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.version, err)
		}

		if applied {
			continue
		}

		logger.InfoContext(ctx, "Applying migration", "version", m.version, "name", m.name)

		_, err = db.ExecContext(ctx, m.sql)
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.version, m.name, err)
		}

		_, err = db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
	}

	return nil
}
