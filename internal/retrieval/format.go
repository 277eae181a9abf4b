package retrieval

import (
	"fmt"
	"strings"

	"fabula/internal/entry"
)

var sectionTitles = map[entry.Type]string{
	entry.TypeCharacter: "Characters",
	entry.TypeLocation:  "Locations",
	entry.TypeItem:      "Items",
	entry.TypeFaction:   "Factions",
	entry.TypeConcept:   "Concepts",
	entry.TypeEvent:     "Events",
}

// FormatContextBlock renders retrieved entries into the prompt-insertable
// block, grouped by type in a fixed section order. Descriptions are
// truncated to maxWords whole words (0 = unlimited). An empty result
// means the block should be omitted, not injected as an empty section.
func FormatContextBlock(entries []RetrievedEntry, maxWords int) string {
	if len(entries) == 0 {
		return ""
	}

	byType := make(map[entry.Type][]RetrievedEntry)
	for _, re := range entries {
		byType[re.Entry.Type] = append(byType[re.Entry.Type], re)
	}

	var b strings.Builder
	for _, t := range entry.Types() {
		group := byType[t]
		if len(group) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s:\n", sectionTitles[t])
		for _, re := range group {
			fmt.Fprintf(&b, "- %s: %s%s\n",
				re.Entry.Name,
				truncateWords(re.Entry.Description, maxWords),
				stateSuffix(re.Entry.State))
		}
	}
	return b.String()
}

// truncateWords cuts text to maxWords whitespace-split words, never
// mid-word, marking the cut with a trailing ellipsis marker.
func truncateWords(text string, maxWords int) string {
	if maxWords <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + " [...]"
}

func stateSuffix(st entry.State) string {
	switch s := st.(type) {
	case entry.CharacterState:
		if s.Disposition != "" {
			return fmt.Sprintf(" [disposition: %s]", s.Disposition)
		}
	case entry.LocationState:
		if s.Current {
			return " [current]"
		}
	case entry.ItemState:
		if s.Equipped {
			return " [equipped]"
		}
		if s.InInventory {
			return " [in inventory]"
		}
	case entry.FactionState:
		if s.Status != entry.StandingNeutral && s.Status != "" {
			return fmt.Sprintf(" [%s]", s.Status)
		}
	case entry.ConceptState:
		if s.Revealed {
			return " [revealed]"
		}
	case entry.EventState:
		if s.Occurred {
			return " [occurred]"
		}
	}
	return ""
}
