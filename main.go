package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"library-catalog/config"
	"library-catalog/library"
	"library-catalog/logger"
)

// app holds what every command needs once flags and config are resolved.
type app struct {
	cfg *config.Config
	log logger.Logger
	mgr *library.LibraryManager
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var dbPath, logLevel string

	root := &cobra.Command{
		Use:           "library",
		Short:         "Library catalog with borrowing, reviews and wishlists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context(), dbPath, logLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			runREPL(cmd.Context(), a, os.Stdin)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database file (overrides LIBRARY_DB_PATH)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(newStatsCmd(a), newSearchCmd(a), newImportCmd(a))
	return root
}

func (a *app) open(ctx context.Context, dbPath, logLevel string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	a.cfg = cfg
	a.log = logger.New(logger.LogLevel(cfg.LogLevel), cfg.AppEnv, os.Stderr)

	mgr, err := library.NewLibraryManager(ctx, cfg.Database.Path, a.log, library.Options{
		SeedSamples:      cfg.Catalog.SeedSamples,
		OneReviewPerUser: cfg.Catalog.OneReviewPerUser,
		Admin: library.AdminSeed{
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
		},
	})
	if err != nil {
		return fmt.Errorf("open library %s: %w", cfg.Database.Path, err)
	}
	a.mgr = mgr
	a.log.Debug("library opened", map[string]interface{}{"db": cfg.Database.Path})
	return nil
}

func (a *app) close() {
	if a.mgr == nil {
		return
	}
	if err := a.mgr.Close(); err != nil {
		a.log.Error("close database", map[string]interface{}{"error": err.Error()})
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print catalog and circulation totals as JSON (admin session required)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mgr.Accounts.RequireAdmin(); err != nil {
				return errors.New(library.Message(err))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a.mgr.Stats())
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search books by title or author",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			books := a.mgr.Catalog.Search(query)
			if len(books) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No books found matching '%s'.\n", query)
				return nil
			}
			printBooks(cmd.OutOrStdout(), books)
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <books.json>",
		Short: "Add the books listed in a JSON file to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			inputs, err := library.ReadBookInputs(f)
			if err != nil {
				return errors.New(library.Message(err))
			}
			added, err := a.mgr.Catalog.Import(cmd.Context(), inputs)
			if err != nil {
				return errors.New(library.Message(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d book(s).\n", len(added))
			return nil
		},
	}
}
