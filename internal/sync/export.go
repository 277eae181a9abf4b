package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"fabula/internal/store"
)

// Exporter turns stories into portable JSON documents and back.
type Exporter interface {
	ListPreviews(ctx context.Context) ([]StoryPreview, error)
	// ExportStory returns the story document plus its title for event
	// messages.
	ExportStory(ctx context.Context, storyID string) (data, title string, err error)
	// ImportStory replaces the story in the local store, returning its
	// title.
	ImportStory(ctx context.Context, data string) (title string, err error)
}

// StoreExporter implements Exporter over the persistence layer.
type StoreExporter struct {
	db store.Store
}

func NewStoreExporter(db store.Store) *StoreExporter {
	return &StoreExporter{db: db}
}

func (x *StoreExporter) ListPreviews(ctx context.Context) ([]StoryPreview, error) {
	summaries, err := x.db.ListStories(ctx)
	if err != nil {
		return nil, err
	}
	previews := make([]StoryPreview, 0, len(summaries))
	for _, s := range summaries {
		previews = append(previews, StoryPreview{
			ID:         s.ID,
			Title:      s.Title,
			Genre:      s.Genre,
			UpdatedAt:  s.UpdatedAt.Unix(),
			EntryCount: s.EntryCount,
		})
	}
	return previews, nil
}

func (x *StoreExporter) ExportStory(ctx context.Context, storyID string) (string, string, error) {
	story, err := x.db.GetStory(ctx, storyID)
	if err != nil {
		return "", "", err
	}
	if story == nil {
		return "", "", fmt.Errorf("story not found: %s", storyID)
	}

	entries, err := x.db.ListEntries(ctx, storyID)
	if err != nil {
		return "", "", err
	}

	doc, err := json.Marshal(Export{Story: exportStory(*story), Entries: entries})
	if err != nil {
		return "", "", fmt.Errorf("marshaling story export: %w", err)
	}
	return string(doc), story.Title, nil
}

func (x *StoreExporter) ImportStory(ctx context.Context, data string) (string, error) {
	var doc Export
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return "", fmt.Errorf("parsing story export: %w", err)
	}
	if doc.Story.ID == "" {
		return "", fmt.Errorf("story export missing id")
	}

	if err := x.db.ReplaceStory(ctx, doc.Story.story(), doc.Entries); err != nil {
		return "", err
	}
	return doc.Story.Title, nil
}
