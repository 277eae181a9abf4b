package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS stories (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		genre      TEXT DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		id               TEXT PRIMARY KEY,
		story_id         TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
		entry_type       TEXT NOT NULL,
		name             TEXT NOT NULL,
		aliases          TEXT DEFAULT '[]',
		description      TEXT DEFAULT '',
		hidden_info      TEXT DEFAULT '',
		state            TEXT DEFAULT '{}',
		injection_mode   TEXT NOT NULL,
		keywords         TEXT DEFAULT '[]',
		priority         INTEGER DEFAULT 0,
		creator          TEXT NOT NULL,
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL,
		mention_count    INTEGER DEFAULT 0,
		last_mentioned   INTEGER DEFAULT 0,
		lore_blacklisted INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS activations (
		story_id TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
		entry_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		CONSTRAINT uq_activation UNIQUE (story_id, entry_id)
	);

	CREATE TABLE IF NOT EXISTS story_positions (
		story_id TEXT PRIMARY KEY REFERENCES stories(id) ON DELETE CASCADE,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_story ON entries (story_id);
	CREATE INDEX IF NOT EXISTS idx_entries_story_type ON entries (story_id, entry_type);
	CREATE INDEX IF NOT EXISTS idx_activations_story ON activations (story_id);
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
