package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fabula/internal/entry"
	"fabula/internal/store"
)

func (c *Client) CreateStory(ctx context.Context, s store.Story) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO stories (id, title, genre, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Title, s.Genre, s.CreatedAt.Unix(), s.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("creating story: %w", err)
	}
	return nil
}

func (c *Client) GetStory(ctx context.Context, id string) (*store.Story, error) {
	var s store.Story
	var createdAt, updatedAt int64
	err := c.pool.QueryRow(ctx,
		`SELECT id, title, genre, created_at, updated_at FROM stories WHERE id = $1`, id).
		Scan(&s.ID, &s.Title, &s.Genre, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting story: %w", err)
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &s, nil
}

func (c *Client) ListStories(ctx context.Context) ([]store.StorySummary, error) {
	rows, err := c.pool.Query(ctx, `
	SELECT s.id, s.title, s.genre, s.updated_at, COUNT(e.id)
	FROM stories s
	LEFT JOIN entries e ON e.story_id = s.id
	GROUP BY s.id
	ORDER BY s.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing stories: %w", err)
	}
	defer rows.Close()

	var out []store.StorySummary
	for rows.Next() {
		var s store.StorySummary
		var updatedAt int64
		if err := rows.Scan(&s.ID, &s.Title, &s.Genre, &updatedAt, &s.EntryCount); err != nil {
			return nil, fmt.Errorf("scanning story summary: %w", err)
		}
		s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stories: %w", err)
	}
	return out, nil
}

func (c *Client) ReplaceStory(ctx context.Context, s store.Story, entries []entry.Entry) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
	INSERT INTO stories (id, title, genre, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		title = excluded.title,
		genre = excluded.genre,
		updated_at = excluded.updated_at`,
		s.ID, s.Title, s.Genre, s.CreatedAt.Unix(), s.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upserting story: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM entries WHERE story_id = $1`, s.ID); err != nil {
		return fmt.Errorf("clearing story entries: %w", err)
	}

	for _, e := range entries {
		aliasesJSON, keywordsJSON, stateJSON, err := encodeEntry(e)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			e.ID, s.ID, string(e.Type), e.Name, aliasesJSON, e.Description, e.HiddenInfo,
			stateJSON, string(e.Injection.Mode), keywordsJSON, e.Injection.Priority,
			string(e.Creator), e.CreatedAt.Unix(), e.UpdatedAt.Unix(),
			e.MentionCount, unixOrZero(e.LastMentionedAt), e.LoreBlacklisted)
		if err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing story replace: %w", err)
	}
	return nil
}
