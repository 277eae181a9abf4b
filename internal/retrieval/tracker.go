package retrieval

// DefaultPruneHorizon bounds how far behind the current position a stale
// activation record may fall before Prune discards it.
const DefaultPruneHorizon = 10

// Tracker records, per entry id, the story position at which the entry was
// last activated. Positions are monotonically non-decreasing per entry:
// re-activation advances or holds, never regresses. The tracker is plain
// in-memory state; persistence across sessions is the caller's concern via
// Snapshot and RestoreTracker.
type Tracker struct {
	position int
	last     map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]int)}
}

// RestoreTracker rebuilds a tracker from a persisted position and
// id-to-position mapping.
func RestoreTracker(position int, last map[string]int) *Tracker {
	t := NewTracker()
	t.position = position
	for id, pos := range last {
		t.last[id] = pos
	}
	return t
}

func (t *Tracker) Position() int {
	return t.position
}

func (t *Tracker) SetPosition(pos int) {
	t.position = pos
}

// LastActivation returns the story position at which the entry was last
// activated, if any.
func (t *Tracker) LastActivation(id string) (int, bool) {
	pos, ok := t.last[id]
	return pos, ok
}

// RecordActivation marks an entry as activated at the given position.
// A position behind an existing record is ignored.
func (t *Tracker) RecordActivation(id string, pos int) {
	if prev, ok := t.last[id]; ok && pos < prev {
		return
	}
	t.last[id] = pos
}

// Prune discards records whose distance behind the current position
// exceeds the horizon, bounding memory growth over long sessions.
// A non-positive horizon falls back to DefaultPruneHorizon.
func (t *Tracker) Prune(horizon int) {
	if horizon <= 0 {
		horizon = DefaultPruneHorizon
	}
	for id, pos := range t.last {
		if t.position-pos > horizon {
			delete(t.last, id)
		}
	}
}

// Snapshot copies the id-to-position mapping for persistence.
func (t *Tracker) Snapshot() map[string]int {
	out := make(map[string]int, len(t.last))
	for id, pos := range t.last {
		out[id] = pos
	}
	return out
}
