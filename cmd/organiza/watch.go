package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"organiza/internal/cache"
	"organiza/internal/config"
	"organiza/internal/importer"
	"organiza/internal/logging"
	"organiza/internal/model"
	"organiza/internal/remote"
	"organiza/internal/session"
	"organiza/internal/syncer"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the client sync daemon",
	Long: `Run the client-side sync daemon.

The daemon keeps the local SQLite cache synchronized with the server over
a live subscription and watches the drop directory for JSON record files
to import. Drop files hold one record or an array of records, each tagged
with a kind (transaction, meal, idea); they are deleted once every record
in them has been created.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		if cfg.Client.Token == "" {
			fmt.Fprintf(os.Stderr, "Error: a session token is required (ORGANIZA_CLIENT_TOKEN)\n")
			os.Exit(1)
		}

		user, err := session.FromToken(cfg.Client.Token)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading session token: %v\n", err)
			os.Exit(1)
		}

		logger := logging.New("organiza", logging.Options{})

		db, err := cache.Open(cfg.Client.CachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening cache database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		client := remote.NewClient(cfg.Client.ServerURL, cfg.Client.Token, remote.WithLogger(logger))

		transactions := syncer.New[model.Transaction](
			cache.NewTransactionRepo(db),
			remote.NewCollection[model.Transaction](client, "transactions"),
			logger,
		)
		meals := syncer.New[model.Meal](
			cache.NewMealRepo(db),
			remote.NewCollection[model.Meal](client, "meals"),
			logger,
		)
		ideas := syncer.New[model.Idea](
			cache.NewIdeaRepo(db),
			remote.NewCollection[model.Idea](client, "ideas"),
			logger,
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sessions := session.NewManager()
		defer syncer.Attach(ctx, transactions, sessions)()
		defer syncer.Attach(ctx, meals, sessions)()
		defer syncer.Attach(ctx, ideas, sessions)()
		sessions.Set(user)

		im := importer.New(&coordinatorCreator{
			transactions: transactions,
			meals:        meals,
			ideas:        ideas,
		}, logger)

		watcher, err := importer.NewWatcher(im, cfg.Client.DropDir, &importer.WatcherConfig{
			DebounceInterval: importer.DefaultWatcherConfig().DebounceInterval,
			Logger:           logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting drop watcher: %v\n", err)
			os.Exit(1)
		}

		logger.Printf("signed in as %s", user.Email)
		logger.Printf("watching %s", cfg.Client.DropDir)
		fmt.Printf("Syncing for %s. Press Ctrl+C to stop.\n", user.Email)

		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Watcher stopped with error: %v\n", err)
			os.Exit(1)
		}
	},
}

// coordinatorCreator routes imported records into the sync coordinators.
type coordinatorCreator struct {
	transactions *syncer.Coordinator[model.Transaction]
	meals        *syncer.Coordinator[model.Meal]
	ideas        *syncer.Coordinator[model.Idea]
}

func (c *coordinatorCreator) CreateTransaction(ctx context.Context, in model.TransactionInput) error {
	_, err := c.transactions.Create(ctx, model.NewTransaction(in))
	return err
}

func (c *coordinatorCreator) CreateMeal(ctx context.Context, in model.MealInput) error {
	_, err := c.meals.Create(ctx, model.NewMeal(in))
	return err
}

func (c *coordinatorCreator) CreateIdea(ctx context.Context, in model.IdeaInput) error {
	_, err := c.ideas.Create(ctx, model.NewIdea(in))
	return err
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
