// Package store defines persistence for stories, lorebook entries, and
// activation records. The retrieval engine itself only reads entries;
// writes serve the CLI, sync, and lore-authoring surfaces.
package store

import (
	"context"
	"time"

	"fabula/internal/entry"
)

type Story struct {
	ID        string
	Title     string
	Genre     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type StorySummary struct {
	ID         string
	Title      string
	Genre      string
	UpdatedAt  time.Time
	EntryCount int
}

type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	CreateStory(ctx context.Context, s Story) error
	GetStory(ctx context.Context, id string) (*Story, error)
	ListStories(ctx context.Context) ([]StorySummary, error)
	// ReplaceStory imports a story wholesale, dropping any entries it
	// previously had. Used by sync push.
	ReplaceStory(ctx context.Context, s Story, entries []entry.Entry) error

	ListEntries(ctx context.Context, storyID string) ([]entry.Entry, error)
	GetEntry(ctx context.Context, id string) (*entry.Entry, error)
	UpsertEntry(ctx context.Context, e entry.Entry) error

	// Activation records persist the stickiness tracker between turns:
	// a story position plus an entry-id-to-position mapping.
	LoadActivations(ctx context.Context, storyID string) (int, map[string]int, error)
	SaveActivations(ctx context.Context, storyID string, position int, last map[string]int) error
}
