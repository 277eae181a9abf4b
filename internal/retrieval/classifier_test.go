package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"fabula/internal/entry"
)

// Tiers 1 and 2 are deterministic and asserted exactly. Tier 3 depends on
// a model call, so tests drive it through stub selectors only.

type stubSelector struct {
	selection Selection
	err       error
	called    bool
}

func (s *stubSelector) SelectEntries(ctx context.Context, req SelectionRequest) (Selection, error) {
	s.called = true
	if err := ctx.Err(); err != nil {
		return Selection{}, err
	}
	return s.selection, s.err
}

func makeEntry(id, name string, t entry.Type, mode entry.Mode, keywords []string, priority int) entry.Entry {
	state, _ := entry.DefaultState(t)
	return entry.Entry{
		ID:          id,
		StoryID:     "story-1",
		Type:        t,
		Name:        name,
		Description: "description of " + name,
		State:       state,
		Injection: entry.Injection{
			Mode:     mode,
			Keywords: keywords,
			Priority: priority,
		},
		Creator: entry.CreatorUser,
	}
}

func TestClassifyAlwaysMode(t *testing.T) {
	engine := NewEngine(Options{}, nil, nil)
	pool := []entry.Entry{
		makeEntry("e1", "Eldara", entry.TypeLocation, entry.ModeAlways, nil, 0),
	}

	res := engine.Classify(context.Background(), Request{Entries: pool})

	if len(res.Tier1) != 1 {
		t.Fatalf("expected 1 tier-1 entry, got %d", len(res.Tier1))
	}
	if res.Tier1[0].Priority != 90 {
		t.Errorf("priority = %d, want 90", res.Tier1[0].Priority)
	}
	if res.Tier1[0].MatchReason != "always active" {
		t.Errorf("matchReason = %q, want %q", res.Tier1[0].MatchReason, "always active")
	}
}

func TestClassifyStateBasedConditions(t *testing.T) {
	tests := []struct {
		name         string
		entry        entry.Entry
		wantPriority int
		wantReason   string
	}{
		{
			name: "character present",
			entry: withState(makeEntry("e1", "Aragorn", entry.TypeCharacter, entry.ModeKeyword, nil, 0),
				entry.CharacterState{Present: true}),
			wantPriority: 85,
			wantReason:   "character present",
		},
		{
			name: "location current",
			entry: withState(makeEntry("e2", "Eldara", entry.TypeLocation, entry.ModeKeyword, nil, 0),
				entry.LocationState{Current: true}),
			wantPriority: 90,
			wantReason:   "current location",
		},
		{
			name: "item in inventory",
			entry: withState(makeEntry("e3", "Torch", entry.TypeItem, entry.ModeKeyword, nil, 0),
				entry.ItemState{InInventory: true}),
			wantPriority: 75,
			wantReason:   "item in inventory",
		},
		{
			name: "faction allied",
			entry: withState(makeEntry("e4", "Silver Hand", entry.TypeFaction, entry.ModeKeyword, nil, 0),
				entry.FactionState{Status: entry.StandingAllied}),
			wantPriority: 70,
			wantReason:   "faction allied",
		},
		{
			name: "faction hostile",
			entry: withState(makeEntry("e5", "Iron Pact", entry.TypeFaction, entry.ModeKeyword, nil, 0),
				entry.FactionState{Status: entry.StandingHostile}),
			wantPriority: 70,
			wantReason:   "faction hostile",
		},
	}

	engine := NewEngine(Options{}, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := engine.Classify(context.Background(), Request{Entries: []entry.Entry{tt.entry}})
			if len(res.Tier1) != 1 {
				t.Fatalf("expected 1 tier-1 entry, got %d", len(res.Tier1))
			}
			got := res.Tier1[0]
			if got.Priority != tt.wantPriority {
				t.Errorf("priority = %d, want %d", got.Priority, tt.wantPriority)
			}
			if got.MatchReason != tt.wantReason {
				t.Errorf("matchReason = %q, want %q", got.MatchReason, tt.wantReason)
			}
		})
	}
}

func TestClassifyAlwaysAndStateCombined(t *testing.T) {
	// Always-mode and a state condition may coexist: priority is the max
	// across reasons, matchReason is the last condition evaluated.
	e := withState(makeEntry("e1", "Aragorn", entry.TypeCharacter, entry.ModeAlways, nil, 0),
		entry.CharacterState{Present: true})

	engine := NewEngine(Options{}, nil, nil)
	res := engine.Classify(context.Background(), Request{Entries: []entry.Entry{e}})

	if len(res.Tier1) != 1 {
		t.Fatalf("expected 1 tier-1 entry, got %d", len(res.Tier1))
	}
	if res.Tier1[0].Priority != 90 {
		t.Errorf("priority = %d, want max(90, 85) = 90", res.Tier1[0].Priority)
	}
	if res.Tier1[0].MatchReason != "character present" {
		t.Errorf("matchReason = %q, want the last evaluated reason", res.Tier1[0].MatchReason)
	}
}

func TestClassifyStickinessDecay(t *testing.T) {
	// Character window is 3 turns: activated at position 1, the entry
	// fades 80, 75, 70, 65 and is gone at 4 turns since.
	tests := []struct {
		turnsSince   int
		wantPresent  bool
		wantPriority int
	}{
		{0, true, 80},
		{1, true, 75},
		{2, true, 70},
		{3, true, 65},
		{4, false, 0},
	}

	engine := NewEngine(Options{}, nil, nil)
	pool := []entry.Entry{
		makeEntry("e1", "Aragorn", entry.TypeCharacter, entry.ModeKeyword, nil, 0),
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d turns since", tt.turnsSince), func(t *testing.T) {
			tracker := NewTracker()
			tracker.RecordActivation("e1", 1)
			tracker.SetPosition(1 + tt.turnsSince)

			res := engine.Classify(context.Background(), Request{Entries: pool, Tracker: tracker})

			if !tt.wantPresent {
				if len(res.Tier1) != 0 {
					t.Fatalf("expected no tier-1 entry past the window, got %d", len(res.Tier1))
				}
				return
			}
			if len(res.Tier1) != 1 {
				t.Fatalf("expected 1 tier-1 entry, got %d", len(res.Tier1))
			}
			got := res.Tier1[0]
			if got.Priority != tt.wantPriority {
				t.Errorf("priority = %d, want %d", got.Priority, tt.wantPriority)
			}
			if !strings.Contains(got.MatchReason, "sticky") {
				t.Errorf("matchReason = %q, want it to mention sticky", got.MatchReason)
			}
		})
	}
}

func TestClassifyStickinessSkippedWhenOtherConditionApplies(t *testing.T) {
	e := withState(makeEntry("e1", "Aragorn", entry.TypeCharacter, entry.ModeKeyword, nil, 0),
		entry.CharacterState{Present: true})

	tracker := NewTracker()
	tracker.RecordActivation("e1", 1)
	tracker.SetPosition(2)

	engine := NewEngine(Options{}, nil, nil)
	res := engine.Classify(context.Background(), Request{Entries: []entry.Entry{e}, Tracker: tracker})

	if len(res.Tier1) != 1 {
		t.Fatalf("expected 1 tier-1 entry, got %d", len(res.Tier1))
	}
	if res.Tier1[0].Priority != 85 {
		t.Errorf("state-based priority should win over stickiness, got %d", res.Tier1[0].Priority)
	}
}

func TestClassifyKeywordMatch(t *testing.T) {
	pool := []entry.Entry{
		makeEntry("e1", "Eldara", entry.TypeLocation, entry.ModeKeyword,
			[]string{"Eldara", "the capital"}, 0),
	}

	engine := NewEngine(Options{}, nil, nil)
	res := engine.Classify(context.Background(), Request{
		Entries:   pool,
		UserInput: "I travel to the capital",
	})

	if len(res.Tier1) != 0 || len(res.Tier3) != 0 {
		t.Fatalf("expected only a tier-2 hit")
	}
	if len(res.Tier2) != 1 {
		t.Fatalf("expected 1 tier-2 entry, got %d", len(res.Tier2))
	}
	got := res.Tier2[0]
	if got.Priority != 70 {
		t.Errorf("priority = %d, want 70", got.Priority)
	}
	if got.MatchReason != "matched: the capital" {
		t.Errorf("matchReason = %q, want %q", got.MatchReason, "matched: the capital")
	}
}

func TestClassifyKeywordMatchUsesRecentEntries(t *testing.T) {
	pool := []entry.Entry{
		makeEntry("e1", "Aragorn", entry.TypeCharacter, entry.ModeKeyword, nil, 3),
	}

	engine := NewEngine(Options{RecentEntriesCount: 2}, nil, nil)
	res := engine.Classify(context.Background(), Request{
		Entries:   pool,
		UserInput: "I keep walking",
		Recent: []string{
			"Aragorn watched from the hill", // beyond the window of two
			"The road bent north",
			"Rain set in before dusk",
		},
	})

	if len(res.Tier2) != 0 {
		t.Fatalf("mention outside the recent-entry window must not match")
	}

	res = engine.Classify(context.Background(), Request{
		Entries:   pool,
		UserInput: "I keep walking",
		Recent: []string{
			"The road bent north",
			"Aragorn waited at the ford",
		},
	})
	if len(res.Tier2) != 1 {
		t.Fatalf("mention inside the recent-entry window should match")
	}
	if res.Tier2[0].Priority != 73 {
		t.Errorf("priority = %d, want 70 + entry priority 3", res.Tier2[0].Priority)
	}
}

func TestClassifyNeverModeExcluded(t *testing.T) {
	pool := []entry.Entry{
		makeEntry("e1", "Secret Vault", entry.TypeLocation, entry.ModeNever,
			[]string{"vault"}, 0),
	}
	sel := &stubSelector{selection: Selection{Indices: []int{0}}}

	engine := NewEngine(Options{EnableModelSelection: true}, sel, nil)
	res := engine.Classify(context.Background(), Request{
		Entries:   pool,
		UserInput: "I open the vault",
	})

	if len(res.All) != 0 {
		t.Fatalf("never-mode entries must not surface anywhere, got %d", len(res.All))
	}
	if sel.called {
		t.Errorf("selector must not see never-mode entries")
	}
}

func TestClassifyLiveEntityDedup(t *testing.T) {
	// A character both live-active and persisted with always-mode must
	// appear exactly once, from the live-state pass.
	pool := []entry.Entry{
		makeEntry("e1", "Aragorn", entry.TypeCharacter, entry.ModeAlways, nil, 0),
	}
	live := &entry.LiveWorldState{
		Characters: []entry.LiveCharacter{{Name: "Aragorn", Active: true}},
	}

	engine := NewEngine(Options{}, nil, nil)
	res := engine.Classify(context.Background(), Request{Entries: pool, Live: live})

	count := 0
	for _, re := range res.All {
		if strings.EqualFold(re.Entry.Name, "Aragorn") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one Aragorn, got %d", count)
	}
	if res.Tier1[0].Priority != 95 || res.Tier1[0].MatchReason != "active character" {
		t.Errorf("the live-state pass should win: got priority %d reason %q",
			res.Tier1[0].Priority, res.Tier1[0].MatchReason)
	}
}

func TestClassifyLiveLocationScenario(t *testing.T) {
	pool := []entry.Entry{
		makeEntry("e1", "Eldara", entry.TypeLocation, entry.ModeKeyword,
			[]string{"Eldara", "the capital"}, 0),
	}
	live := &entry.LiveWorldState{
		Locations: []entry.LiveLocation{{Name: "Eldara", Current: true}},
	}

	engine := NewEngine(Options{}, nil, nil)
	res := engine.Classify(context.Background(), Request{
		Entries:   pool,
		UserInput: "I travel to the capital",
		Live:      live,
	})

	if len(res.Tier1) != 1 || res.Tier1[0].Priority != 100 {
		t.Fatalf("expected the live mirror at priority 100")
	}
	if len(res.Tier2) != 0 || len(res.Tier3) != 0 {
		t.Errorf("the mirrored entry must not also match tier 2 or 3")
	}
}

func TestClassifyTier3Selection(t *testing.T) {
	pool := []entry.Entry{
		makeEntry("e1", "Old Rebellion", entry.TypeEvent, entry.ModeRelevant, nil, 2),
		makeEntry("e2", "Harvest Rite", entry.TypeConcept, entry.ModeRelevant, nil, 0),
		makeEntry("e3", "Gray Order", entry.TypeFaction, entry.ModeRelevant, nil, 1),
	}
	sel := &stubSelector{selection: Selection{Indices: []int{2, 0}, Reasoning: "war is brewing"}}

	engine := NewEngine(Options{EnableModelSelection: true}, sel, nil)
	res := engine.Classify(context.Background(), Request{Entries: pool, UserInput: "what now"})

	if len(res.Tier3) != 2 {
		t.Fatalf("expected 2 tier-3 entries, got %d", len(res.Tier3))
	}
	// Selector ordering is preserved.
	if res.Tier3[0].Entry.ID != "e3" || res.Tier3[1].Entry.ID != "e1" {
		t.Errorf("tier 3 must keep the selector's own ordering")
	}
	if res.Tier3[0].Priority != 51 || res.Tier3[1].Priority != 52 {
		t.Errorf("tier-3 priorities = %d, %d; want 50 + entry priority",
			res.Tier3[0].Priority, res.Tier3[1].Priority)
	}
	if res.Tier3[0].MatchReason != "war is brewing" {
		t.Errorf("matchReason = %q, want the selector's reasoning", res.Tier3[0].MatchReason)
	}
}

func TestClassifyTier3Cap(t *testing.T) {
	var pool []entry.Entry
	for i := 0; i < 5; i++ {
		pool = append(pool, makeEntry(fmt.Sprintf("e%d", i), fmt.Sprintf("Entry %d", i),
			entry.TypeConcept, entry.ModeRelevant, nil, 0))
	}
	sel := &stubSelector{selection: Selection{Indices: []int{4, 1, 3, 0, 2}}}

	engine := NewEngine(Options{EnableModelSelection: true, MaxTier3Entries: 2}, sel, nil)
	res := engine.Classify(context.Background(), Request{Entries: pool, UserInput: "hm"})

	if len(res.Tier3) != 2 {
		t.Fatalf("expected tier 3 capped at 2, got %d", len(res.Tier3))
	}
	if res.Tier3[0].Entry.ID != "e4" || res.Tier3[1].Entry.ID != "e1" {
		t.Errorf("capping must keep the first selections in the selector's order")
	}
}

func TestClassifyTier3InvalidIndices(t *testing.T) {
	pool := []entry.Entry{
		makeEntry("e1", "Harvest Rite", entry.TypeConcept, entry.ModeRelevant, nil, 0),
	}
	sel := &stubSelector{selection: Selection{Indices: []int{-1, 0, 0, 7}}}

	engine := NewEngine(Options{EnableModelSelection: true}, sel, nil)
	res := engine.Classify(context.Background(), Request{Entries: pool, UserInput: "hm"})

	if len(res.Tier3) != 1 {
		t.Fatalf("out-of-range and duplicate indices must be dropped, got %d", len(res.Tier3))
	}
}

func TestClassifyTier3FailureDegrades(t *testing.T) {
	pool := []entry.Entry{
		makeEntry("e1", "Eldara", entry.TypeLocation, entry.ModeAlways, nil, 0),
		makeEntry("e2", "Harvest Rite", entry.TypeConcept, entry.ModeRelevant, nil, 0),
	}
	sel := &stubSelector{err: fmt.Errorf("model timeout")}

	engine := NewEngine(Options{EnableModelSelection: true}, sel, nil)
	res := engine.Classify(context.Background(), Request{Entries: pool, UserInput: "hm"})

	if len(res.Tier3) != 0 {
		t.Fatalf("selector failure must yield empty tier 3")
	}
	if len(res.Tier1) != 1 {
		t.Errorf("tier 1 must be unaffected by a tier-3 failure")
	}
}

func TestClassifyTier3Cancellation(t *testing.T) {
	pool := []entry.Entry{
		makeEntry("e1", "Eldara", entry.TypeLocation, entry.ModeAlways, nil, 0),
		makeEntry("e2", "Harvest Rite", entry.TypeConcept, entry.ModeRelevant, nil, 0),
	}
	sel := &stubSelector{selection: Selection{Indices: []int{0}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(Options{EnableModelSelection: true}, sel, nil)
	res := engine.Classify(ctx, Request{Entries: pool, UserInput: "hm"})

	if len(res.Tier3) != 0 {
		t.Fatalf("cancellation must yield empty tier 3, not an error")
	}
	if len(res.Tier1) != 1 {
		t.Errorf("tiers 1-2 remain valid under cancellation")
	}
}

func TestClassifyTierExclusivity(t *testing.T) {
	pool := []entry.Entry{
		makeEntry("e1", "Eldara", entry.TypeLocation, entry.ModeAlways, []string{"Eldara"}, 0),
		makeEntry("e2", "Aragorn", entry.TypeCharacter, entry.ModeKeyword, []string{"king"}, 0),
		makeEntry("e3", "Harvest Rite", entry.TypeConcept, entry.ModeRelevant, nil, 0),
		makeEntry("e4", "Gray Order", entry.TypeFaction, entry.ModeRelevant, nil, 0),
	}
	sel := &stubSelector{selection: Selection{Indices: []int{0, 1}}}

	engine := NewEngine(Options{EnableModelSelection: true}, sel, nil)
	res := engine.Classify(context.Background(), Request{
		Entries:   pool,
		UserInput: "the king marches on Eldara",
	})

	seen := make(map[string]int)
	for _, tier := range [][]RetrievedEntry{res.Tier1, res.Tier2, res.Tier3} {
		for _, re := range tier {
			seen[re.Entry.ID]++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("entry %s appears in %d tiers", id, n)
		}
	}
}

func TestClassifyAllSortedByPriority(t *testing.T) {
	pool := []entry.Entry{
		makeEntry("e1", "Torch", entry.TypeItem, entry.ModeKeyword, []string{"torch"}, 9),
		makeEntry("e2", "Eldara", entry.TypeLocation, entry.ModeAlways, nil, 0),
		makeEntry("e3", "Harvest Rite", entry.TypeConcept, entry.ModeRelevant, nil, 0),
	}
	sel := &stubSelector{selection: Selection{Indices: []int{0}}}

	engine := NewEngine(Options{EnableModelSelection: true}, sel, nil)
	res := engine.Classify(context.Background(), Request{
		Entries:   pool,
		UserInput: "I raise the torch",
		Live: &entry.LiveWorldState{
			Characters: []entry.LiveCharacter{{Name: "Aragorn", Active: true}},
		},
	})

	if len(res.All) != 4 {
		t.Fatalf("expected 4 entries in All, got %d", len(res.All))
	}
	for i := 1; i < len(res.All); i++ {
		if res.All[i].Priority > res.All[i-1].Priority {
			t.Fatalf("All is not sorted non-increasing at index %d: %d > %d",
				i, res.All[i].Priority, res.All[i-1].Priority)
		}
	}
}

func TestClassifyRecordsTier2ActivationsOnly(t *testing.T) {
	// Known asymmetry: keyword matches feed the tracker, model
	// selections do not, so tier-3 picks never become sticky.
	pool := []entry.Entry{
		makeEntry("e1", "Eldara", entry.TypeLocation, entry.ModeKeyword, []string{"capital"}, 0),
		makeEntry("e2", "Harvest Rite", entry.TypeConcept, entry.ModeRelevant, nil, 0),
	}
	sel := &stubSelector{selection: Selection{Indices: []int{0}}}

	tracker := NewTracker()
	tracker.SetPosition(7)

	engine := NewEngine(Options{EnableModelSelection: true}, sel, nil)
	res := engine.Classify(context.Background(), Request{
		Entries:   pool,
		UserInput: "I enter the capital",
		Tracker:   tracker,
	})

	if len(res.Tier2) != 1 || len(res.Tier3) != 1 {
		t.Fatalf("expected one tier-2 and one tier-3 entry")
	}
	if pos, ok := tracker.LastActivation("e1"); !ok || pos != 7 {
		t.Errorf("tier-2 match must be recorded at the current position")
	}
	if _, ok := tracker.LastActivation("e2"); ok {
		t.Errorf("tier-3 selection must not be recorded")
	}
}

func TestClassifyLiveMirrorsNotRecorded(t *testing.T) {
	tracker := NewTracker()
	tracker.SetPosition(3)

	engine := NewEngine(Options{}, nil, nil)
	engine.Classify(context.Background(), Request{
		Live: &entry.LiveWorldState{
			Locations: []entry.LiveLocation{{Name: "Eldara", Current: true}},
		},
		Tracker: tracker,
	})

	if len(tracker.Snapshot()) != 0 {
		t.Errorf("live mirrors must never enter the activation map")
	}
}

func TestClassifyEmptyPool(t *testing.T) {
	engine := NewEngine(Options{}, nil, nil)
	res := engine.Classify(context.Background(), Request{UserInput: "hello"})

	if len(res.All) != 0 {
		t.Fatalf("expected empty result")
	}
	if res.ContextBlock != "" {
		t.Errorf("empty result must render an empty context block")
	}
}

func withState(e entry.Entry, st entry.State) entry.Entry {
	e.State = st
	return e
}
