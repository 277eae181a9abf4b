package retrieval

import (
	"strings"
	"testing"

	"fabula/internal/entry"
)

func TestFormatContextBlockEmpty(t *testing.T) {
	if got := FormatContextBlock(nil, 0); got != "" {
		t.Errorf("empty input must render nothing, got %q", got)
	}
}

func TestFormatContextBlockSectionOrder(t *testing.T) {
	entries := []RetrievedEntry{
		{Entry: entry.Entry{Type: entry.TypeEvent, Name: "Old Rebellion", Description: "a failed uprising", State: entry.EventState{}}},
		{Entry: entry.Entry{Type: entry.TypeCharacter, Name: "Aragorn", Description: "a ranger", State: entry.CharacterState{}}},
		{Entry: entry.Entry{Type: entry.TypeLocation, Name: "Eldara", Description: "the capital city", State: entry.LocationState{}}},
	}

	got := FormatContextBlock(entries, 0)

	chars := strings.Index(got, "Characters:")
	locs := strings.Index(got, "Locations:")
	events := strings.Index(got, "Events:")
	if chars == -1 || locs == -1 || events == -1 {
		t.Fatalf("missing section headers:\n%s", got)
	}
	if !(chars < locs && locs < events) {
		t.Errorf("sections out of order:\n%s", got)
	}
	if strings.Contains(got, "Items:") {
		t.Errorf("empty sections must be omitted:\n%s", got)
	}
	if !strings.Contains(got, "- Aragorn: a ranger\n") {
		t.Errorf("missing entry line:\n%s", got)
	}
}

func TestFormatContextBlockStateSuffixes(t *testing.T) {
	tests := []struct {
		name  string
		state entry.State
		want  string
	}{
		{"disposition", entry.CharacterState{Disposition: "wary"}, " [disposition: wary]"},
		{"no disposition", entry.CharacterState{Present: true}, ""},
		{"current location", entry.LocationState{Current: true}, " [current]"},
		{"equipped beats held", entry.ItemState{InInventory: true, Equipped: true}, " [equipped]"},
		{"held item", entry.ItemState{InInventory: true}, " [in inventory]"},
		{"hostile faction", entry.FactionState{Status: entry.StandingHostile}, " [hostile]"},
		{"neutral faction", entry.FactionState{Status: entry.StandingNeutral}, ""},
		{"revealed concept", entry.ConceptState{Revealed: true}, " [revealed]"},
		{"occurred event", entry.EventState{Occurred: true}, " [occurred]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stateSuffix(tt.state); got != tt.want {
				t.Errorf("stateSuffix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		text     string
		maxWords int
		want     string
	}{
		{"one two three four five", 3, "one two three [...]"},
		{"one two three", 3, "one two three"},
		{"one two", 5, "one two"},
		{"one two three", 0, "one two three"},
		{"  spaced   out   words  here ", 2, "spaced out [...]"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := truncateWords(tt.text, tt.maxWords); got != tt.want {
			t.Errorf("truncateWords(%q, %d) = %q, want %q", tt.text, tt.maxWords, got, tt.want)
		}
	}
}
