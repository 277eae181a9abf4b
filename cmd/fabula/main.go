package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Optional; API keys usually live in the environment or a local .env.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "fabula",
		Short: "Lorebook retrieval engine for interactive fiction",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.AddCommand(initCmd())
	root.AddCommand(retrieveCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(importCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
