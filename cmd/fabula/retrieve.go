package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fabula/internal/config"
	"fabula/internal/retrieval"
)

func retrieveCmd() *cobra.Command {
	var input string
	var recent []string
	var noSave bool
	cmd := &cobra.Command{
		Use:   "retrieve <story-id>",
		Short: "Run a retrieval turn and print the tiered result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetrieve(args[0], input, recent, noSave)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "The player's input for this turn")
	cmd.Flags().StringArrayVar(&recent, "recent", nil, "Recent narrative entry (repeatable, oldest first)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not persist activation records")
	return cmd
}

func runRetrieve(storyID, input string, recent []string, noSave bool) error {
	ctx := context.Background()

	cfg, err := config.Load("fabula.yaml")
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	entries, err := db.ListEntries(ctx, storyID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "No entries for this story.")
		return nil
	}

	position, last, err := db.LoadActivations(ctx, storyID)
	if err != nil {
		return err
	}
	tracker := retrieval.RestoreTracker(position+1, last)

	engine := buildEngine(cfg)
	result := engine.Classify(ctx, retrieval.Request{
		Entries:   entries,
		UserInput: input,
		Recent:    recent,
		Tracker:   tracker,
	})

	printTier(1, result.Tier1)
	printTier(2, result.Tier2)
	printTier(3, result.Tier3)

	if result.ContextBlock != "" {
		fmt.Fprintf(os.Stdout, "\nContext block:\n%s", result.ContextBlock)
	}

	if noSave {
		return nil
	}
	tracker.Prune(retrieval.DefaultPruneHorizon)
	return db.SaveActivations(ctx, storyID, tracker.Position(), tracker.Snapshot())
}

func printTier(tier int, entries []retrieval.RetrievedEntry) {
	fmt.Fprintf(os.Stdout, "Tier %d (%d entries):\n", tier, len(entries))
	for _, re := range entries {
		fmt.Fprintf(os.Stdout, "  %s (%s) priority=%d — %s\n",
			re.Entry.Name, re.Entry.Type, re.Priority, re.MatchReason)
	}
}
