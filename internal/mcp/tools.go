package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"fabula/internal/entry"
	"fabula/internal/retrieval"
)

type RetrieveEntriesInput struct {
	StoryID   string   `json:"story_id" jsonschema:"story to retrieve entries for"`
	UserInput string   `json:"user_input" jsonschema:"the player's input for this turn"`
	Recent    []string `json:"recent,omitempty" jsonschema:"recent narrative entries, oldest first"`
}

type ListEntriesInput struct {
	StoryID string `json:"story_id" jsonschema:"story to list entries for"`
	Type    string `json:"type,omitempty" jsonschema:"entry type filter"`
}

type GetEntryInput struct {
	ID string `json:"id" jsonschema:"entry id"`
}

type SearchEntriesInput struct {
	StoryID string `json:"story_id" jsonschema:"story to search in"`
	Text    string `json:"text" jsonschema:"text to match names, aliases, and keywords against"`
}

type RetrievedEntryOutput struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Tier        int    `json:"tier"`
	Priority    int    `json:"priority"`
	MatchReason string `json:"matchReason,omitempty"`
}

type RetrieveEntriesOutput struct {
	Tier1        []RetrievedEntryOutput `json:"tier1"`
	Tier2        []RetrievedEntryOutput `json:"tier2"`
	Tier3        []RetrievedEntryOutput `json:"tier3"`
	ContextBlock string                 `json:"contextBlock"`
}

type EntrySummaryOutput struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Mode     string `json:"mode"`
	Priority int    `json:"priority"`
}

type ListEntriesOutput struct {
	Entries []EntrySummaryOutput `json:"entries"`
}

type EntryOutput struct {
	ID          string   `json:"id"`
	StoryID     string   `json:"storyId"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description"`
	Mode        string   `json:"mode"`
	Keywords    []string `json:"keywords,omitempty"`
	Priority    int      `json:"priority"`
	Creator     string   `json:"creator"`
}

type SearchEntriesOutput struct {
	Entries []EntrySummaryOutput `json:"entries"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "retrieve_entries",
		Description: "Run a retrieval turn: classify a story's entries into injection tiers and render the context block",
	}, s.handleRetrieveEntries)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_entries",
		Description: "List a story's lorebook entries with an optional type filter",
	}, s.handleListEntries)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_entry",
		Description: "Retrieve a specific lorebook entry",
	}, s.handleGetEntry)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_entries",
		Description: "Find entries whose name, aliases, or keywords match a text",
	}, s.handleSearchEntries)
}

func (s *Server) handleRetrieveEntries(ctx context.Context, req *sdk.CallToolRequest, input RetrieveEntriesInput) (*sdk.CallToolResult, RetrieveEntriesOutput, error) {
	if input.StoryID == "" {
		return nil, RetrieveEntriesOutput{}, fmt.Errorf("story_id is required")
	}

	entries, err := s.db.ListEntries(ctx, input.StoryID)
	if err != nil {
		return nil, RetrieveEntriesOutput{}, err
	}

	position, last, err := s.db.LoadActivations(ctx, input.StoryID)
	if err != nil {
		return nil, RetrieveEntriesOutput{}, err
	}
	tracker := retrieval.RestoreTracker(position+1, last)

	result := s.engine.Classify(ctx, retrieval.Request{
		Entries:   entries,
		UserInput: input.UserInput,
		Recent:    input.Recent,
		Tracker:   tracker,
	})

	tracker.Prune(retrieval.DefaultPruneHorizon)
	if err := s.db.SaveActivations(ctx, input.StoryID, tracker.Position(), tracker.Snapshot()); err != nil {
		return nil, RetrieveEntriesOutput{}, err
	}

	return nil, RetrieveEntriesOutput{
		Tier1:        retrievedOutputs(result.Tier1),
		Tier2:        retrievedOutputs(result.Tier2),
		Tier3:        retrievedOutputs(result.Tier3),
		ContextBlock: result.ContextBlock,
	}, nil
}

func (s *Server) handleListEntries(ctx context.Context, req *sdk.CallToolRequest, input ListEntriesInput) (*sdk.CallToolResult, ListEntriesOutput, error) {
	if input.StoryID == "" {
		return nil, ListEntriesOutput{}, fmt.Errorf("story_id is required")
	}

	entries, err := s.db.ListEntries(ctx, input.StoryID)
	if err != nil {
		return nil, ListEntriesOutput{}, err
	}

	output := make([]EntrySummaryOutput, 0, len(entries))
	for _, e := range entries {
		if input.Type != "" && string(e.Type) != input.Type {
			continue
		}
		output = append(output, entrySummaryOutput(e))
	}
	return nil, ListEntriesOutput{Entries: output}, nil
}

func (s *Server) handleGetEntry(ctx context.Context, req *sdk.CallToolRequest, input GetEntryInput) (*sdk.CallToolResult, EntryOutput, error) {
	if input.ID == "" {
		return nil, EntryOutput{}, fmt.Errorf("id is required")
	}

	e, err := s.db.GetEntry(ctx, input.ID)
	if err != nil {
		return nil, EntryOutput{}, err
	}
	if e == nil {
		return nil, EntryOutput{}, fmt.Errorf("entry not found")
	}

	return nil, EntryOutput{
		ID:          e.ID,
		StoryID:     e.StoryID,
		Type:        string(e.Type),
		Name:        e.Name,
		Aliases:     e.Aliases,
		Description: e.Description,
		Mode:        string(e.Injection.Mode),
		Keywords:    e.Injection.Keywords,
		Priority:    e.Injection.Priority,
		Creator:     string(e.Creator),
	}, nil
}

func (s *Server) handleSearchEntries(ctx context.Context, req *sdk.CallToolRequest, input SearchEntriesInput) (*sdk.CallToolResult, SearchEntriesOutput, error) {
	if input.StoryID == "" {
		return nil, SearchEntriesOutput{}, fmt.Errorf("story_id is required")
	}
	if input.Text == "" {
		return nil, SearchEntriesOutput{}, fmt.Errorf("text is required")
	}

	entries, err := s.db.ListEntries(ctx, input.StoryID)
	if err != nil {
		return nil, SearchEntriesOutput{}, err
	}

	var output []EntrySummaryOutput
	for _, e := range entries {
		tokens := append([]string{e.Name}, e.Aliases...)
		tokens = append(tokens, e.Injection.Keywords...)
		for _, tok := range tokens {
			if retrieval.Matches(tok, input.Text) {
				output = append(output, entrySummaryOutput(e))
				break
			}
		}
	}
	return nil, SearchEntriesOutput{Entries: output}, nil
}

func retrievedOutputs(entries []retrieval.RetrievedEntry) []RetrievedEntryOutput {
	out := make([]RetrievedEntryOutput, 0, len(entries))
	for _, re := range entries {
		out = append(out, RetrievedEntryOutput{
			ID:          re.Entry.ID,
			Type:        string(re.Entry.Type),
			Name:        re.Entry.Name,
			Tier:        re.Tier,
			Priority:    re.Priority,
			MatchReason: re.MatchReason,
		})
	}
	return out
}

func entrySummaryOutput(e entry.Entry) EntrySummaryOutput {
	return EntrySummaryOutput{
		ID:       e.ID,
		Type:     string(e.Type),
		Name:     e.Name,
		Mode:     string(e.Injection.Mode),
		Priority: e.Injection.Priority,
	}
}
