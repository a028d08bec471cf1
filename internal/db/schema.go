package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the tables this service reads and writes. updated_at has no
// trigger; the application assigns it on every mutation. parent_id has no
// ON DELETE CASCADE; the store deletes whole subtrees itself.
var Schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id          UUID NOT NULL,
		title            TEXT NOT NULL CONSTRAINT tasks_title_check CHECK (length(btrim(title)) > 0),
		description      TEXT,
		parent_id        UUID REFERENCES tasks(id),
		time_cost_x      DOUBLE PRECISION NOT NULL DEFAULT 50 CONSTRAINT tasks_time_cost_x_check CHECK (time_cost_x BETWEEN 0 AND 100),
		interest_y       DOUBLE PRECISION NOT NULL DEFAULT 50 CONSTRAINT tasks_interest_y_check CHECK (interest_y BETWEEN 0 AND 100),
		difficulty       INTEGER NOT NULL DEFAULT 5 CONSTRAINT tasks_difficulty_check CHECK (difficulty BETWEEN 1 AND 10),
		category         TEXT NOT NULL DEFAULT 'personal',
		status           TEXT NOT NULL DEFAULT 'inbox',
		last_touched_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		focus_started_at TIMESTAMPTZ,
		total_focus_time BIGINT NOT NULL DEFAULT 0 CONSTRAINT tasks_total_focus_time_check CHECK (total_focus_time >= 0),
		position         DOUBLE PRECISION NOT NULL DEFAULT 0,
		metadata         JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	legacyColumns,
	legacyMigration,
	`CREATE INDEX IF NOT EXISTS tasks_user_status_idx ON tasks (user_id, status)`,
	`CREATE INDEX IF NOT EXISTS tasks_parent_idx ON tasks (parent_id)`,
	`CREATE INDEX IF NOT EXISTS tasks_stale_idx ON tasks (status, last_touched_at)`,
	`CREATE TABLE IF NOT EXISTS analytics_events (
		id               BIGSERIAL PRIMARY KEY,
		event_name       TEXT NOT NULL,
		event_time       TIMESTAMPTZ NOT NULL,
		user_id          TEXT NOT NULL,
		session_id       TEXT,
		platform         TEXT NOT NULL DEFAULT 'unknown',
		app_version      TEXT NOT NULL DEFAULT '',
		device_locale    TEXT,
		ip_country       TEXT,
		source_event_key TEXT UNIQUE,
		properties       JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
}

// legacyColumns adds the columns a tasks table from the older schema
// (content, coordinate_x, coordinate_y) is missing.
const legacyColumns = `ALTER TABLE tasks
		ADD COLUMN IF NOT EXISTS title            TEXT,
		ADD COLUMN IF NOT EXISTS description      TEXT,
		ADD COLUMN IF NOT EXISTS time_cost_x      DOUBLE PRECISION NOT NULL DEFAULT 50,
		ADD COLUMN IF NOT EXISTS interest_y       DOUBLE PRECISION NOT NULL DEFAULT 50,
		ADD COLUMN IF NOT EXISTS difficulty       INTEGER NOT NULL DEFAULT 5,
		ADD COLUMN IF NOT EXISTS category         TEXT NOT NULL DEFAULT 'personal',
		ADD COLUMN IF NOT EXISTS updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		ADD COLUMN IF NOT EXISTS focus_started_at TIMESTAMPTZ,
		ADD COLUMN IF NOT EXISTS total_focus_time BIGINT NOT NULL DEFAULT 0,
		ADD COLUMN IF NOT EXISTS position         DOUBLE PRECISION NOT NULL DEFAULT 0,
		ADD COLUMN IF NOT EXISTS metadata         JSONB NOT NULL DEFAULT '{}'::jsonb`

// legacyMigration copies content and coordinate_x/y into the current columns and
// then drops them, so the copy happens exactly once per table. It finishes with the
// constraints a freshly created table already has.
const legacyMigration = `DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.columns
		           WHERE table_name = 'tasks' AND column_name = 'content') THEN
			UPDATE tasks SET title = content WHERE title IS NULL;
			ALTER TABLE tasks DROP COLUMN content;
		END IF;
		IF EXISTS (SELECT 1 FROM information_schema.columns
		           WHERE table_name = 'tasks' AND column_name = 'coordinate_x') THEN
			UPDATE tasks SET
				time_cost_x = LEAST(GREATEST(COALESCE(coordinate_x, 50), 0), 100),
				interest_y  = LEAST(GREATEST(COALESCE(coordinate_y, 50), 0), 100);
			ALTER TABLE tasks DROP COLUMN coordinate_x, DROP COLUMN coordinate_y;
		END IF;

		UPDATE tasks SET title = 'Untitled' WHERE title IS NULL OR btrim(title) = '';
		ALTER TABLE tasks ALTER COLUMN title SET NOT NULL;

		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'tasks_title_check') THEN
			ALTER TABLE tasks ADD CONSTRAINT tasks_title_check CHECK (length(btrim(title)) > 0);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'tasks_time_cost_x_check') THEN
			ALTER TABLE tasks ADD CONSTRAINT tasks_time_cost_x_check CHECK (time_cost_x BETWEEN 0 AND 100);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'tasks_interest_y_check') THEN
			ALTER TABLE tasks ADD CONSTRAINT tasks_interest_y_check CHECK (interest_y BETWEEN 0 AND 100);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'tasks_difficulty_check') THEN
			ALTER TABLE tasks ADD CONSTRAINT tasks_difficulty_check CHECK (difficulty BETWEEN 1 AND 10);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'tasks_total_focus_time_check') THEN
			ALTER TABLE tasks ADD CONSTRAINT tasks_total_focus_time_check CHECK (total_focus_time >= 0);
		END IF;
	END $$`

// EnsureSchema applies Schema inside one transaction.
func EnsureSchema(ctx context.Context, dbx *sql.DB) error {
	tx, err := dbx.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range Schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
