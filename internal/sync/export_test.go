package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fabula/internal/entry"
	"fabula/internal/store"
)

// memStore is a minimal in-memory store.Store for exporter tests.
type memStore struct {
	stories map[string]store.Story
	entries map[string][]entry.Entry
}

func newMemStore() *memStore {
	return &memStore{
		stories: make(map[string]store.Story),
		entries: make(map[string][]entry.Entry),
	}
}

func (m *memStore) Close(ctx context.Context) error        { return nil }
func (m *memStore) EnsureSchema(ctx context.Context) error { return nil }

func (m *memStore) CreateStory(ctx context.Context, s store.Story) error {
	m.stories[s.ID] = s
	return nil
}

func (m *memStore) GetStory(ctx context.Context, id string) (*store.Story, error) {
	s, ok := m.stories[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) ListStories(ctx context.Context) ([]store.StorySummary, error) {
	var out []store.StorySummary
	for _, s := range m.stories {
		out = append(out, store.StorySummary{
			ID:         s.ID,
			Title:      s.Title,
			Genre:      s.Genre,
			UpdatedAt:  s.UpdatedAt,
			EntryCount: len(m.entries[s.ID]),
		})
	}
	return out, nil
}

func (m *memStore) ReplaceStory(ctx context.Context, s store.Story, entries []entry.Entry) error {
	m.stories[s.ID] = s
	m.entries[s.ID] = entries
	return nil
}

func (m *memStore) ListEntries(ctx context.Context, storyID string) ([]entry.Entry, error) {
	return m.entries[storyID], nil
}

func (m *memStore) GetEntry(ctx context.Context, id string) (*entry.Entry, error) {
	for _, list := range m.entries {
		for _, e := range list {
			if e.ID == id {
				return &e, nil
			}
		}
	}
	return nil, nil
}

func (m *memStore) UpsertEntry(ctx context.Context, e entry.Entry) error {
	m.entries[e.StoryID] = append(m.entries[e.StoryID], e)
	return nil
}

func (m *memStore) LoadActivations(ctx context.Context, storyID string) (int, map[string]int, error) {
	return 0, map[string]int{}, nil
}

func (m *memStore) SaveActivations(ctx context.Context, storyID string, position int, last map[string]int) error {
	return nil
}

var _ store.Store = (*memStore)(nil)

func TestStoreExporterRoundtrip(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()

	now := time.Unix(1700000000, 0).UTC()
	story := store.Story{ID: "s1", Title: "The Fall of Eldara", Genre: "fantasy", CreatedAt: now, UpdatedAt: now}
	if err := src.CreateStory(ctx, story); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	state, _ := entry.DefaultState(entry.TypeLocation)
	if err := src.UpsertEntry(ctx, entry.Entry{
		ID:          "e1",
		StoryID:     "s1",
		Type:        entry.TypeLocation,
		Name:        "Eldara",
		Description: "the capital city",
		State:       state,
		Injection:   entry.Injection{Mode: entry.ModeKeyword, Keywords: []string{"capital"}},
		Creator:     entry.CreatorUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}

	data, title, err := NewStoreExporter(src).ExportStory(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportStory: %v", err)
	}
	if title != "The Fall of Eldara" {
		t.Errorf("title = %q", title)
	}

	// Import into a second, empty store.
	dst := newMemStore()
	gotTitle, err := NewStoreExporter(dst).ImportStory(ctx, data)
	if err != nil {
		t.Fatalf("ImportStory: %v", err)
	}
	if gotTitle != "The Fall of Eldara" {
		t.Errorf("imported title = %q", gotTitle)
	}

	imported, err := dst.GetStory(ctx, "s1")
	if err != nil || imported == nil {
		t.Fatalf("GetStory after import: %v, %v", imported, err)
	}
	if !imported.UpdatedAt.Equal(now) {
		t.Errorf("updatedAt = %v, want %v", imported.UpdatedAt, now)
	}
	entries, err := dst.ListEntries(ctx, "s1")
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Eldara" {
		t.Fatalf("entries = %+v", entries)
	}
	if _, ok := entries[0].State.(entry.LocationState); !ok {
		t.Errorf("state decoded as %T", entries[0].State)
	}
	if len(entries[0].Injection.Keywords) != 1 {
		t.Errorf("keywords = %v", entries[0].Injection.Keywords)
	}
}

func TestStoreExporterMissingStory(t *testing.T) {
	exp := NewStoreExporter(newMemStore())
	if _, _, err := exp.ExportStory(context.Background(), "nope"); err == nil {
		t.Fatal("expected an error for a missing story")
	}
}

func TestStoreExporterImportRejectsBadDocuments(t *testing.T) {
	exp := NewStoreExporter(newMemStore())
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not a document"},
		{"missing id", `{"story":{"title":"No ID"},"entries":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := exp.ImportStory(context.Background(), tt.data); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestStoreExporterListPreviews(t *testing.T) {
	ctx := context.Background()
	db := newMemStore()
	now := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("s%d", i)
		db.CreateStory(ctx, store.Story{ID: id, Title: "Story " + id, UpdatedAt: now})
	}
	previews, err := NewStoreExporter(db).ListPreviews(ctx)
	if err != nil {
		t.Fatalf("ListPreviews: %v", err)
	}
	if len(previews) != 2 {
		t.Fatalf("previews = %+v", previews)
	}
	if previews[0].UpdatedAt != now.Unix() {
		t.Errorf("updatedAt = %d, want unix seconds", previews[0].UpdatedAt)
	}
}
