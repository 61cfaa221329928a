package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "organiza",
	Short: "Personal organizer sync tooling",
	Long: `organiza keeps transactions, meals and ideas synchronized between a
local SQLite cache and the authoritative sync server.

Commands:
  serve    run the sync server
  watch    run the client-side sync daemon with a drop-directory importer
  status   inspect the local cache`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
