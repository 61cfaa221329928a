package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"organiza/internal/cache"
	"organiza/internal/config"
	"organiza/internal/model"
	"organiza/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local cache status",
	Long: `Display the state of the local SQLite cache.

Shows:
  - Cache file location and size
  - Number of cached transactions, meals and ideas
  - Income, expense and balance totals when a session token is configured`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}

		info, err := os.Stat(cfg.Client.CachePath)
		if os.IsNotExist(err) {
			fmt.Printf("\nCache not initialized at %s\n", cfg.Client.CachePath)
			fmt.Printf("Run 'organiza watch' to create it\n\n")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking cache: %v\n", err)
			os.Exit(1)
		}

		db, err := cache.Open(cfg.Client.CachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening cache database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		counts := map[string]int{}
		for _, table := range []string{"transactions", "meals", "ideas"} {
			var n int
			if err := db.RawDB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
				fmt.Fprintf(os.Stderr, "Error counting %s: %v\n", table, err)
				os.Exit(1)
			}
			counts[table] = n
		}

		size := info.Size()
		sizeStr := fmt.Sprintf("%d bytes", size)
		if size > 1024*1024 {
			sizeStr = fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
		} else if size > 1024 {
			sizeStr = fmt.Sprintf("%.1f KB", float64(size)/1024)
		}

		fmt.Printf("\nLocal Cache Status\n\n")
		fmt.Printf("Location: %s\n", cfg.Client.CachePath)
		fmt.Printf("Size: %s\n", sizeStr)
		fmt.Printf("Transactions: %d\n", counts["transactions"])
		fmt.Printf("Meals: %d\n", counts["meals"])
		fmt.Printf("Ideas: %d\n", counts["ideas"])
		fmt.Printf("Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))

		// totals need a user partition, so they require the session token
		if cfg.Client.Token != "" {
			if user, err := session.FromToken(cfg.Client.Token); err == nil {
				txs, err := cache.NewTransactionRepo(db).GetAll(context.Background(), user.ID)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error reading transactions: %v\n", err)
					os.Exit(1)
				}
				totals := model.Summarize(txs)
				fmt.Printf("\nTotals for %s\n", user.Email)
				fmt.Printf("Income: %s\n", totals.Income.StringFixed(2))
				fmt.Printf("Expense: %s\n", totals.Expense.StringFixed(2))
				fmt.Printf("Balance: %s\n", totals.Balance.StringFixed(2))
			}
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
