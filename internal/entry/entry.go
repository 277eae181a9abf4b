// Package entry defines the lorebook entry model: the unit of world
// knowledge eligible for prompt injection, its closed type set, and the
// type-specific state each entry carries.
package entry

import (
	"encoding/json"
	"fmt"
	"time"
)

type Type string

const (
	TypeCharacter Type = "character"
	TypeLocation  Type = "location"
	TypeItem      Type = "item"
	TypeFaction   Type = "faction"
	TypeConcept   Type = "concept"
	TypeEvent     Type = "event"
)

// Types lists every entry type in the fixed presentation order used when
// formatting context blocks.
func Types() []Type {
	return []Type{TypeCharacter, TypeLocation, TypeItem, TypeFaction, TypeConcept, TypeEvent}
}

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeCharacter, TypeLocation, TypeItem, TypeFaction, TypeConcept, TypeEvent:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown entry type: %q", s)
}

// Mode controls when an entry is eligible for injection.
type Mode string

const (
	ModeAlways   Mode = "always"
	ModeKeyword  Mode = "keyword"
	ModeRelevant Mode = "relevant"
	ModeNever    Mode = "never"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAlways, ModeKeyword, ModeRelevant, ModeNever:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown injection mode: %q", s)
}

type Creator string

const (
	CreatorUser   Creator = "user"
	CreatorAI     Creator = "ai"
	CreatorImport Creator = "import"
)

// Injection is the policy portion of an entry: when it may be injected,
// which keywords trigger it, and its priority used as a sort tie-breaker.
type Injection struct {
	Mode     Mode     `json:"mode"`
	Keywords []string `json:"keywords,omitempty"`
	Priority int      `json:"priority"`
}

// Entry is a unit of persisted world knowledge belonging to a story.
// HiddenInfo is never consulted by matching; it is reserved for other
// subsystems and only carried through.
type Entry struct {
	ID      string `json:"id"`
	StoryID string `json:"storyId"`
	Type    Type   `json:"type"`

	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description"`
	HiddenInfo  string   `json:"hiddenInfo,omitempty"`

	State     State     `json:"state"`
	Injection Injection `json:"injection"`

	Creator         Creator   `json:"creator"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	MentionCount    int       `json:"mentionCount"`
	LastMentionedAt time.Time `json:"lastMentionedAt,omitzero"`

	// Excluded from autonomous lore editing. Irrelevant to retrieval but
	// preserved through every load/store cycle.
	LoreBlacklisted bool `json:"loreManagementBlacklisted"`
}

// UnmarshalJSON decodes the state variant according to the entry's type.
// Marshaling needs no counterpart: the concrete variant serializes as-is.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	var raw struct {
		plain
		State json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry(raw.plain)
	if _, err := ParseType(string(e.Type)); err != nil {
		return err
	}
	state, err := DecodeState(e.Type, raw.State)
	if err != nil {
		return fmt.Errorf("decoding state for %q: %w", e.ID, err)
	}
	e.State = state
	return nil
}
