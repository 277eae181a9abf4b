package entry

import (
	"encoding/json"
	"fmt"
)

// State is the type-specific dynamic portion of an entry. Exactly one
// variant exists per entry type; EntryType reports which. The closed set
// lets callers switch exhaustively on the concrete variant.
type State interface {
	EntryType() Type
}

type Standing string

const (
	StandingHostile Standing = "hostile"
	StandingNeutral Standing = "neutral"
	StandingAllied  Standing = "allied"
)

// RelationshipChange is one step in a character's relationship history.
type RelationshipChange struct {
	Turn   int    `json:"turn"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

type CharacterState struct {
	Present             bool                 `json:"present"`
	Disposition         string               `json:"disposition,omitempty"`
	Relationship        int                  `json:"relationship"`
	RelationshipHistory []RelationshipChange `json:"relationshipHistory,omitempty"`
	KnownFacts          []string             `json:"knownFacts,omitempty"`
}

type LocationState struct {
	Current    bool `json:"current"`
	VisitCount int  `json:"visitCount"`
}

type ItemState struct {
	InInventory bool `json:"inInventory"`
	Equipped    bool `json:"equipped"`
}

type FactionState struct {
	Standing int      `json:"standing"`
	Status   Standing `json:"status"`
}

type ConceptState struct {
	Revealed      bool `json:"revealed"`
	Comprehension int  `json:"comprehension"`
}

type EventState struct {
	Occurred  bool     `json:"occurred"`
	Witnesses []string `json:"witnesses,omitempty"`
}

func (CharacterState) EntryType() Type { return TypeCharacter }
func (LocationState) EntryType() Type  { return TypeLocation }
func (ItemState) EntryType() Type      { return TypeItem }
func (FactionState) EntryType() Type   { return TypeFaction }
func (ConceptState) EntryType() Type   { return TypeConcept }
func (EventState) EntryType() Type     { return TypeEvent }

// DefaultState returns the zero-valued variant for an entry type. Factions
// start neutral.
func DefaultState(t Type) (State, error) {
	switch t {
	case TypeCharacter:
		return CharacterState{}, nil
	case TypeLocation:
		return LocationState{}, nil
	case TypeItem:
		return ItemState{}, nil
	case TypeFaction:
		return FactionState{Status: StandingNeutral}, nil
	case TypeConcept:
		return ConceptState{}, nil
	case TypeEvent:
		return EventState{}, nil
	}
	return nil, fmt.Errorf("unknown entry type: %q", t)
}

// DecodeState unmarshals a state document into the variant matching the
// entry type. Empty input yields the default variant.
func DecodeState(t Type, data []byte) (State, error) {
	if len(data) == 0 || string(data) == "null" {
		return DefaultState(t)
	}
	switch t {
	case TypeCharacter:
		var s CharacterState
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding character state: %w", err)
		}
		return s, nil
	case TypeLocation:
		var s LocationState
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding location state: %w", err)
		}
		return s, nil
	case TypeItem:
		var s ItemState
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding item state: %w", err)
		}
		return s, nil
	case TypeFaction:
		var s FactionState
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding faction state: %w", err)
		}
		if s.Status == "" {
			s.Status = StandingNeutral
		}
		return s, nil
	case TypeConcept:
		var s ConceptState
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding concept state: %w", err)
		}
		return s, nil
	case TypeEvent:
		var s EventState
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding event state: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown entry type: %q", t)
}
