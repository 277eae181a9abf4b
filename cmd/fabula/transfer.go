package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fabula/internal/config"
	"fabula/internal/sync"
)

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <story-id>",
		Short: "Export a story and its entries as a portable JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args[0], out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func runExport(storyID, out string) error {
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

	data, title, err := sync.NewStoreExporter(db).ExportStory(ctx, storyID)
	if err != nil {
		return err
	}

	if out == "" {
		fmt.Fprintln(os.Stdout, data)
		return nil
	}
	if err := os.WriteFile(out, []byte(data), 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Exported %q to %s\n", title, out)
	return nil
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a story document, replacing any existing copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(args[0])
		},
	}
}

func runImport(path string) error {
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

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading import: %w", err)
	}

	title, err := sync.NewStoreExporter(db).ImportStory(ctx, string(data))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Imported %q\n", title)
	return nil
}
