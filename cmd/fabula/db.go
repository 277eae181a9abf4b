package main

import (
	"context"
	"fmt"
	"os"

	"fabula/internal/config"
	"fabula/internal/entry"
	"fabula/internal/llm"
	"fabula/internal/retrieval"
	"fabula/internal/store"
	"fabula/internal/store/postgres"
	"fabula/internal/store/sqlite"
)

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return sqlite.New(ctx, cfg.Database.DSN)
	case "postgres":
		return postgres.New(ctx, cfg.Database.DSN)
	}
	return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
}

// buildEngine wires a retrieval engine from configuration. Tier 3 stays
// off when no API key is present.
func buildEngine(cfg *config.Config) *retrieval.Engine {
	opts := retrieval.Options{
		RecentEntriesCount:   cfg.Retrieval.RecentEntries,
		MaxTier3Entries:      cfg.Retrieval.MaxTier3Entries,
		MaxWordsPerEntry:     cfg.Retrieval.MaxWordsPerEntry,
		EnableModelSelection: cfg.Retrieval.EnableModelSelection,
		DecayWindows:         decayWindows(cfg),
	}

	var selector retrieval.Selector
	client := llm.NewClient(
		cfg.Model.BaseURL,
		os.Getenv(cfg.Model.APIKeyEnv),
		cfg.Model.Model,
		cfg.Model.Temperature,
		cfg.Model.MaxTokens,
	)
	if client.Enabled() {
		selector = retrieval.NewModelSelector(client)
	}

	return retrieval.NewEngine(opts, selector, nil)
}

func decayWindows(cfg *config.Config) map[entry.Type]int {
	if len(cfg.Retrieval.DecayWindows) == 0 {
		return nil
	}
	windows := retrieval.DefaultDecayWindows()
	for name, w := range cfg.Retrieval.DecayWindows {
		windows[entry.Type(name)] = w
	}
	return windows
}
