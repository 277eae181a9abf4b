package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS stories (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			genre      TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			id               TEXT PRIMARY KEY,
			story_id         TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
			entry_type       TEXT NOT NULL,
			name             TEXT NOT NULL,
			aliases          JSONB NOT NULL DEFAULT '[]',
			description      TEXT NOT NULL DEFAULT '',
			hidden_info      TEXT NOT NULL DEFAULT '',
			state            JSONB NOT NULL DEFAULT '{}',
			injection_mode   TEXT NOT NULL,
			keywords         JSONB NOT NULL DEFAULT '[]',
			priority         INTEGER NOT NULL DEFAULT 0,
			creator          TEXT NOT NULL,
			created_at       BIGINT NOT NULL,
			updated_at       BIGINT NOT NULL,
			mention_count    INTEGER NOT NULL DEFAULT 0,
			last_mentioned   BIGINT NOT NULL DEFAULT 0,
			lore_blacklisted BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS activations (
			story_id TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
			entry_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			CONSTRAINT uq_activation UNIQUE (story_id, entry_id)
		)`,
		`CREATE TABLE IF NOT EXISTS story_positions (
			story_id TEXT PRIMARY KEY REFERENCES stories(id) ON DELETE CASCADE,
			position INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_story ON entries (story_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_story_type ON entries (story_id, entry_type)`,
		`CREATE INDEX IF NOT EXISTS idx_activations_story ON activations (story_id)`,
	}

	for _, stmt := range statements {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}
	return nil
}
