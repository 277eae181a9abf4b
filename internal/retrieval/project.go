package retrieval

import (
	"strings"

	"fabula/internal/entry"
)

// Live-mirror priorities. Strict numeric ordering: the current location
// outranks active characters, which outrank carried items.
const (
	priLiveLocation  = 100
	priLiveCharacter = 95
	priLiveItem      = 80
)

const liveIDPrefix = "live:"

// IsLiveID reports whether an entry id belongs to a live-state mirror
// rather than the persisted lorebook.
func IsLiveID(id string) bool {
	return strings.HasPrefix(id, liveIDPrefix)
}

func liveID(t entry.Type, name string) string {
	return liveIDPrefix + string(t) + ":" + strings.ToLower(name)
}

// ProjectLiveState converts actively-tracked world entities into
// entry-shaped tier-1 records with synthetic ids. Inactive entities are
// skipped. Insertion order within each kind is preserved.
func ProjectLiveState(live *entry.LiveWorldState) []RetrievedEntry {
	if live == nil {
		return nil
	}

	var out []RetrievedEntry
	for _, loc := range live.Locations {
		if !loc.Current {
			continue
		}
		out = append(out, RetrievedEntry{
			Entry: entry.Entry{
				ID:          liveID(entry.TypeLocation, loc.Name),
				Type:        entry.TypeLocation,
				Name:        loc.Name,
				Description: loc.Description,
				State:       entry.LocationState{Current: true, VisitCount: loc.VisitCount},
			},
			Tier:        1,
			Priority:    priLiveLocation,
			MatchReason: "current location",
		})
	}
	for _, ch := range live.Characters {
		if !ch.Active {
			continue
		}
		out = append(out, RetrievedEntry{
			Entry: entry.Entry{
				ID:          liveID(entry.TypeCharacter, ch.Name),
				Type:        entry.TypeCharacter,
				Name:        ch.Name,
				Description: ch.Description,
				State:       entry.CharacterState{Present: true, Disposition: ch.Disposition},
			},
			Tier:        1,
			Priority:    priLiveCharacter,
			MatchReason: "active character",
		})
	}
	for _, it := range live.Items {
		if !it.InInventory {
			continue
		}
		out = append(out, RetrievedEntry{
			Entry: entry.Entry{
				ID:          liveID(entry.TypeItem, it.Name),
				Type:        entry.TypeItem,
				Name:        it.Name,
				Description: it.Description,
				State:       entry.ItemState{InInventory: true, Equipped: it.Equipped},
			},
			Tier:        1,
			Priority:    priLiveItem,
			MatchReason: "in inventory",
		})
	}
	return out
}
