package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fabula/internal/entry"
)

const entryColumns = `id, story_id, entry_type, name, aliases, description, hidden_info,
	state, injection_mode, keywords, priority, creator, created_at, updated_at,
	mention_count, last_mentioned, lore_blacklisted`

func (c *Client) UpsertEntry(ctx context.Context, e entry.Entry) error {
	aliasesJSON, keywordsJSON, stateJSON, err := encodeEntry(e)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO entries (` + entryColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (id) DO UPDATE SET
		entry_type = excluded.entry_type,
		name = excluded.name,
		aliases = excluded.aliases,
		description = excluded.description,
		hidden_info = excluded.hidden_info,
		state = excluded.state,
		injection_mode = excluded.injection_mode,
		keywords = excluded.keywords,
		priority = excluded.priority,
		updated_at = excluded.updated_at,
		mention_count = excluded.mention_count,
		last_mentioned = excluded.last_mentioned,
		lore_blacklisted = excluded.lore_blacklisted
	`

	_, err = c.pool.Exec(ctx, query,
		e.ID, e.StoryID, string(e.Type), e.Name, aliasesJSON, e.Description, e.HiddenInfo,
		stateJSON, string(e.Injection.Mode), keywordsJSON, e.Injection.Priority,
		string(e.Creator), e.CreatedAt.Unix(), e.UpdatedAt.Unix(),
		e.MentionCount, unixOrZero(e.LastMentionedAt), e.LoreBlacklisted,
	)
	if err != nil {
		return fmt.Errorf("upserting entry: %w", err)
	}
	return nil
}

func (c *Client) GetEntry(ctx context.Context, id string) (*entry.Entry, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting entry: %w", err)
		}
		return nil, nil
	}
	return scanEntry(rows)
}

func (c *Client) ListEntries(ctx context.Context, storyID string) ([]entry.Entry, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE story_id = $1 ORDER BY created_at, id`, storyID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []entry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

func encodeEntry(e entry.Entry) (aliases, keywords, state []byte, err error) {
	aliases, err = json.Marshal(stringsOrEmpty(e.Aliases))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling aliases: %w", err)
	}
	keywords, err = json.Marshal(stringsOrEmpty(e.Injection.Keywords))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling keywords: %w", err)
	}
	state, err = json.Marshal(e.State)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling state: %w", err)
	}
	return aliases, keywords, state, nil
}

func scanEntry(rows pgx.Rows) (*entry.Entry, error) {
	var e entry.Entry
	var entryType, mode, creator string
	var aliasesBytes, keywordsBytes, stateBytes []byte
	var createdAt, updatedAt, lastMentioned int64

	err := rows.Scan(
		&e.ID, &e.StoryID, &entryType, &e.Name, &aliasesBytes, &e.Description, &e.HiddenInfo,
		&stateBytes, &mode, &keywordsBytes, &e.Injection.Priority,
		&creator, &createdAt, &updatedAt,
		&e.MentionCount, &lastMentioned, &e.LoreBlacklisted,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning entry: %w", err)
	}

	e.Type, err = entry.ParseType(entryType)
	if err != nil {
		return nil, fmt.Errorf("scanning entry %s: %w", e.ID, err)
	}
	e.Injection.Mode, err = entry.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("scanning entry %s: %w", e.ID, err)
	}
	e.Creator = entry.Creator(creator)

	if len(aliasesBytes) > 0 {
		if err := json.Unmarshal(aliasesBytes, &e.Aliases); err != nil {
			return nil, fmt.Errorf("unmarshaling aliases: %w", err)
		}
	}
	if len(keywordsBytes) > 0 {
		if err := json.Unmarshal(keywordsBytes, &e.Injection.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshaling keywords: %w", err)
		}
	}
	e.State, err = entry.DecodeState(e.Type, stateBytes)
	if err != nil {
		return nil, fmt.Errorf("decoding entry state: %w", err)
	}

	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if lastMentioned > 0 {
		e.LastMentionedAt = time.Unix(lastMentioned, 0).UTC()
	}

	return &e, nil
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
