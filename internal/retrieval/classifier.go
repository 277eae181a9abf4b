package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"fabula/internal/entry"
)

// Tier base offsets. Tier-1 priorities are condition-specific; tier 2 and
// tier 3 add the entry's own injection priority to their base.
const (
	priAlwaysMode       = 90
	priLocationCurrent  = 90
	priCharacterPresent = 85
	priItemHeld         = 75
	priFactionEngaged   = 70
	tier2Base           = 70
	tier3Base           = 50
	stickyBase          = 60
	stickyRange         = 20
)

// DefaultDecayWindows is the per-type stickiness window in turns.
func DefaultDecayWindows() map[entry.Type]int {
	return map[entry.Type]int{
		entry.TypeCharacter: 3,
		entry.TypeLocation:  3,
		entry.TypeItem:      2,
		entry.TypeFaction:   4,
		entry.TypeConcept:   5,
		entry.TypeEvent:     2,
	}
}

// Options are the explicit knobs of a classification engine. Zero values
// mean: five recent entries, unlimited tier 3, unlimited words per entry,
// model selection off, default decay windows.
type Options struct {
	// RecentEntriesCount is how many trailing narrative entries join the
	// user input to form the tier-2 match text.
	RecentEntriesCount int
	// MaxTier3Entries truncates the model's selection; 0 keeps all.
	MaxTier3Entries int
	// MaxWordsPerEntry truncates descriptions in the context block;
	// 0 is unlimited. Clamped to [0, 500].
	MaxWordsPerEntry int
	// EnableModelSelection turns the tier-3 pass on.
	EnableModelSelection bool
	// DecayWindows overrides the per-type stickiness windows.
	DecayWindows map[entry.Type]int
}

func (o Options) normalized() Options {
	if o.RecentEntriesCount <= 0 {
		o.RecentEntriesCount = 5
	}
	if o.MaxWordsPerEntry < 0 {
		o.MaxWordsPerEntry = 0
	}
	if o.MaxWordsPerEntry > 500 {
		o.MaxWordsPerEntry = 500
	}
	if o.MaxTier3Entries < 0 {
		o.MaxTier3Entries = 0
	}
	if o.DecayWindows == nil {
		o.DecayWindows = DefaultDecayWindows()
	}
	return o
}

// RetrievedEntry wraps an entry with the tier it resolved to, its final
// priority, and a human-readable reason for diagnostics.
type RetrievedEntry struct {
	Entry       entry.Entry
	Tier        int
	Priority    int
	MatchReason string
}

// Request carries one turn's inputs: the full entry pool for the story,
// the player's input, trailing narrative entries (oldest first), optional
// live world state, and an optional activation tracker.
type Request struct {
	Entries   []entry.Entry
	UserInput string
	Recent    []string
	Live      *entry.LiveWorldState
	Tracker   *Tracker
}

// Result is one turn's output. It is recomputed fresh every turn and
// never persisted.
type Result struct {
	Tier1 []RetrievedEntry
	Tier2 []RetrievedEntry
	Tier3 []RetrievedEntry
	// All is the flattened union, sorted non-increasing by priority.
	All []RetrievedEntry
	// ContextBlock is the prompt-insertable rendering of All; empty means
	// the caller should omit the block entirely.
	ContextBlock string
}

// Engine classifies an entry pool into the three injection tiers. It is
// stateless between calls and safe to construct per story session.
type Engine struct {
	opts     Options
	selector Selector
	log      *slog.Logger
}

// NewEngine builds an engine. The selector may be nil, which disables
// tier 3 regardless of options. A nil logger falls back to slog.Default.
func NewEngine(opts Options, selector Selector, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{opts: opts.normalized(), selector: selector, log: log}
}

// Classify runs one retrieval turn. Tiers 1 and 2 are deterministic pure
// computation; tier 3 asks the model to pick from the remaining
// candidates and may vary between runs. Tier-3 failure or cancellation
// degrades to an empty tier 3 and is never surfaced as an error.
func (e *Engine) Classify(ctx context.Context, req Request) Result {
	var res Result
	seen := make(map[string]bool)
	liveNames := make(map[string]bool)

	// Live mirrors first; lorebook entries shadowed by a mirror are
	// excluded from every later pass.
	for _, m := range ProjectLiveState(req.Live) {
		res.Tier1 = append(res.Tier1, m)
		seen[m.Entry.ID] = true
		liveNames[liveKey(m.Entry.Type, m.Entry.Name)] = true
	}

	var rest []entry.Entry
	for _, en := range req.Entries {
		if seen[en.ID] || liveNames[liveKey(en.Type, en.Name)] {
			continue
		}
		seen[en.ID] = true

		pri, reason := tier1Score(en)
		if pri == 0 && req.Tracker != nil {
			pri, reason = e.stickyScore(en, req.Tracker)
		}
		if pri > 0 {
			res.Tier1 = append(res.Tier1, RetrievedEntry{Entry: en, Tier: 1, Priority: pri, MatchReason: reason})
			continue
		}
		if en.Injection.Mode != entry.ModeNever {
			rest = append(rest, en)
		}
	}

	haystack := e.buildMatchText(req.UserInput, req.Recent)
	var tier3Pool []entry.Entry
	for _, en := range rest {
		matched := matchedTokens(en, haystack)
		if len(matched) == 0 {
			tier3Pool = append(tier3Pool, en)
			continue
		}
		res.Tier2 = append(res.Tier2, RetrievedEntry{
			Entry:       en,
			Tier:        2,
			Priority:    tier2Base + en.Injection.Priority,
			MatchReason: "matched: " + strings.Join(matched, ", "),
		})
	}

	if e.opts.EnableModelSelection && e.selector != nil && len(tier3Pool) > 0 {
		res.Tier3 = e.selectTier3(ctx, tier3Pool, req)
	}

	// Only tier-2 matches feed back into the tracker. Tier-3 selections
	// never become sticky on later turns.
	if req.Tracker != nil {
		for _, re := range res.Tier2 {
			if !IsLiveID(re.Entry.ID) {
				req.Tracker.RecordActivation(re.Entry.ID, req.Tracker.Position())
			}
		}
	}

	res.All = make([]RetrievedEntry, 0, len(res.Tier1)+len(res.Tier2)+len(res.Tier3))
	res.All = append(res.All, res.Tier1...)
	res.All = append(res.All, res.Tier2...)
	res.All = append(res.All, res.Tier3...)
	sort.SliceStable(res.All, func(i, j int) bool {
		return res.All[i].Priority > res.All[j].Priority
	})

	res.ContextBlock = FormatContextBlock(res.All, e.opts.MaxWordsPerEntry)
	return res
}

func liveKey(t entry.Type, name string) string {
	return string(t) + ":" + strings.ToLower(name)
}

// tier1Score evaluates the always-mode and state-based conditions in a
// fixed pass order. The priority is the max across matching conditions;
// the reason is the last condition that matched.
func tier1Score(en entry.Entry) (int, string) {
	pri, reason := 0, ""
	if en.Injection.Mode == entry.ModeAlways {
		pri, reason = priAlwaysMode, "always active"
	}
	switch st := en.State.(type) {
	case entry.CharacterState:
		if st.Present {
			pri, reason = max(pri, priCharacterPresent), "character present"
		}
	case entry.LocationState:
		if st.Current {
			pri, reason = max(pri, priLocationCurrent), "current location"
		}
	case entry.ItemState:
		if st.InInventory {
			pri, reason = max(pri, priItemHeld), "item in inventory"
		}
	case entry.FactionState:
		if st.Status == entry.StandingAllied || st.Status == entry.StandingHostile {
			pri, reason = max(pri, priFactionEngaged), "faction "+string(st.Status)
		}
	case entry.ConceptState, entry.EventState:
		// No state-based tier-1 condition for these types.
	}
	return pri, reason
}

// stickyScore grants fading tier-1 eligibility to recently-activated
// entries: round(60 + (1 - turnsSince/(window+1)) * 20), decaying from
// near 80 down toward 60 as the window is exhausted.
func (e *Engine) stickyScore(en entry.Entry, tr *Tracker) (int, string) {
	last, ok := tr.LastActivation(en.ID)
	if !ok {
		return 0, ""
	}
	window := e.opts.DecayWindows[en.Type]
	if window <= 0 {
		return 0, ""
	}
	since := tr.Position() - last
	if since < 0 || since > window {
		return 0, ""
	}
	fade := 1 - float64(since)/float64(window+1)
	pri := int(math.Round(stickyBase + fade*stickyRange))
	return pri, fmt.Sprintf("sticky (%d turns since activation)", since)
}

func (e *Engine) buildMatchText(userInput string, recent []string) string {
	parts := []string{userInput}
	if n := e.opts.RecentEntriesCount; len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	parts = append(parts, recent...)
	return strings.ToLower(strings.Join(parts, " "))
}

// matchedTokens checks the entry's name, every alias, and every injection
// keyword against the match text, returning the deduplicated set of
// tokens that hit.
func matchedTokens(en entry.Entry, haystack string) []string {
	tokens := make([]string, 0, 1+len(en.Aliases)+len(en.Injection.Keywords))
	tokens = append(tokens, en.Name)
	tokens = append(tokens, en.Aliases...)
	tokens = append(tokens, en.Injection.Keywords...)

	var matched []string
	dedup := make(map[string]bool)
	for _, tok := range tokens {
		trimmed := strings.TrimSpace(tok)
		key := strings.ToLower(trimmed)
		if dedup[key] {
			continue
		}
		if Matches(tok, haystack) {
			dedup[key] = true
			matched = append(matched, trimmed)
		}
	}
	return matched
}

func (e *Engine) selectTier3(ctx context.Context, pool []entry.Entry, req Request) []RetrievedEntry {
	sreq := SelectionRequest{
		UserInput:  req.UserInput,
		Recent:     req.Recent,
		Candidates: make([]Candidate, 0, len(pool)),
	}
	for i, en := range pool {
		sreq.Candidates = append(sreq.Candidates, Candidate{
			Index:   i,
			Type:    en.Type,
			Name:    en.Name,
			Summary: summarize(en.Description, summaryRunes),
		})
	}

	sel, err := e.selector.SelectEntries(ctx, sreq)
	if err != nil {
		e.log.Warn("tier 3 selection failed, continuing without it",
			"candidates", len(pool), "error", err)
		return nil
	}

	picked := make(map[int]bool)
	var out []RetrievedEntry
	for _, idx := range sel.Indices {
		if idx < 0 || idx >= len(pool) || picked[idx] {
			continue
		}
		picked[idx] = true
		reason := sel.Reasoning
		if reason == "" {
			reason = "selected by model"
		}
		out = append(out, RetrievedEntry{
			Entry:       pool[idx],
			Tier:        3,
			Priority:    tier3Base + pool[idx].Injection.Priority,
			MatchReason: reason,
		})
	}
	// Keep the model's own ordering when capping.
	if limit := e.opts.MaxTier3Entries; limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
