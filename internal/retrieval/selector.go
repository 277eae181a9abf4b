package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fabula/internal/entry"
)

// summaryRunes bounds how much of a description the tier-3 candidate list
// carries. Long descriptions blow the selection prompt without helping.
const summaryRunes = 100

// Candidate is one tier-3 candidate as presented to the model.
type Candidate struct {
	Index   int
	Type    entry.Type
	Name    string
	Summary string
}

type SelectionRequest struct {
	Candidates []Candidate
	UserInput  string
	Recent     []string
}

// Selection is the model's structured answer: candidate indices plus
// free-text reasoning.
type Selection struct {
	Indices   []int  `json:"selected"`
	Reasoning string `json:"reasoning"`
}

// Selector chooses which long-tail candidates are relevant to the current
// turn. Implementations are expected to be non-deterministic.
type Selector interface {
	SelectEntries(ctx context.Context, req SelectionRequest) (Selection, error)
}

// Completer is the single external text-completion capability the engine
// consumes.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ModelSelector asks a completion model to pick relevant candidates,
// expecting a JSON object answer.
type ModelSelector struct {
	client Completer
}

func NewModelSelector(client Completer) *ModelSelector {
	return &ModelSelector{client: client}
}

func (s *ModelSelector) SelectEntries(ctx context.Context, req SelectionRequest) (Selection, error) {
	if len(req.Candidates) == 0 {
		return Selection{}, nil
	}

	resp, err := s.client.Complete(ctx, selectionSystemPrompt, buildSelectionPrompt(req))
	if err != nil {
		return Selection{}, fmt.Errorf("selection call: %w", err)
	}
	return parseSelection(resp)
}

const selectionSystemPrompt = `You curate world knowledge for an interactive story.
Given the recent narrative, the player's input, and a numbered list of
lore entries, choose only the entries genuinely relevant to what is
happening right now. Prefer fewer, stronger picks over padding.

Respond ONLY with a JSON object:
{"selected": [<candidate numbers>], "reasoning": "<one sentence>"}

If nothing is relevant, respond with {"selected": [], "reasoning": "..."}.`

func buildSelectionPrompt(req SelectionRequest) string {
	var b strings.Builder

	if len(req.Recent) > 0 {
		b.WriteString("Recent narrative:\n")
		for _, line := range req.Recent {
			fmt.Fprintf(&b, "%s\n", line)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Player input: %s\n\n", req.UserInput)

	b.WriteString("Candidate entries:\n")
	for _, c := range req.Candidates {
		fmt.Fprintf(&b, "%d. [%s] %s — %s\n", c.Index, c.Type, c.Name, c.Summary)
	}

	b.WriteString("\nWhich candidates are relevant? Respond with the JSON object only.")
	return b.String()
}

// parseSelection extracts the JSON object from the response, tolerating
// explanation text the model may wrap around it.
func parseSelection(resp string) (Selection, error) {
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start == -1 || end == -1 || end <= start {
		return Selection{}, fmt.Errorf("no JSON object in selection response")
	}

	var sel Selection
	if err := json.Unmarshal([]byte(resp[start:end+1]), &sel); err != nil {
		return Selection{}, fmt.Errorf("parsing selection response: %w", err)
	}
	return sel, nil
}

func summarize(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit])
}
