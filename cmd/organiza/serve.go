package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"organiza/internal/config"
	"organiza/internal/logging"
	"organiza/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync server",
	Long: `Start the authoritative sync server.

The server stores each user's records as JSON documents, authenticates
with bearer tokens, and pushes the full record set to every connected
watch client after each change.

With ORGANIZA_SERVER_POSTGRES_DSN set, documents and accounts live in
Postgres; without it an in-memory store is used, suitable only for
development.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		if cfg.Server.JWTSecret == "" {
			fmt.Fprintf(os.Stderr, "Error: a JWT secret is required (ORGANIZA_SERVER_JWT_SECRET)\n")
			os.Exit(1)
		}

		logger := logging.New("server", logging.Options{})

		var store server.Store
		var accounts server.Accounts
		if cfg.Server.PostgresDSN != "" {
			gs, err := server.OpenGorm(cfg.Server.PostgresDSN)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error opening postgres store: %v\n", err)
				os.Exit(1)
			}
			store, accounts = gs, gs
		} else {
			ms := server.NewMemStore()
			store, accounts = ms, ms
			logger.Printf("no postgres DSN configured, using the in-memory store")
		}

		issuer := server.NewTokenIssuer([]byte(cfg.Server.JWTSecret), cfg.Server.TokenTTL)
		srv := server.New(store, accounts, issuer, logger)

		httpSrv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		logger.Printf("listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Server stopped with error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
