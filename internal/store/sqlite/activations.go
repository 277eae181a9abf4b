package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

func (c *Client) LoadActivations(ctx context.Context, storyID string) (int, map[string]int, error) {
	var position int
	err := c.db.QueryRowContext(ctx,
		`SELECT position FROM story_positions WHERE story_id = ?`, storyID).Scan(&position)
	if err != nil && err != sql.ErrNoRows {
		return 0, nil, fmt.Errorf("loading story position: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT entry_id, position FROM activations WHERE story_id = ?`, storyID)
	if err != nil {
		return 0, nil, fmt.Errorf("loading activations: %w", err)
	}
	defer rows.Close()

	last := make(map[string]int)
	for rows.Next() {
		var entryID string
		var pos int
		if err := rows.Scan(&entryID, &pos); err != nil {
			return 0, nil, fmt.Errorf("scanning activation: %w", err)
		}
		last[entryID] = pos
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterating activations: %w", err)
	}
	return position, last, nil
}

func (c *Client) SaveActivations(ctx context.Context, storyID string, position int, last map[string]int) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO story_positions (story_id, position) VALUES (?, ?)
	ON CONFLICT (story_id) DO UPDATE SET position = excluded.position`,
		storyID, position)
	if err != nil {
		return fmt.Errorf("saving story position: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM activations WHERE story_id = ?`, storyID); err != nil {
		return fmt.Errorf("clearing activations: %w", err)
	}

	for entryID, pos := range last {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO activations (story_id, entry_id, position) VALUES (?, ?, ?)`,
			storyID, entryID, pos)
		if err != nil {
			return fmt.Errorf("saving activation for %s: %w", entryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing activations: %w", err)
	}
	return nil
}
