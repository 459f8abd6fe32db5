package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"library-catalog/config"
	"library-catalog/library"
	"library-catalog/logger"
)

const defaultBooksFile = "data/books.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.LogLevel(cfg.LogLevel), cfg.AppEnv, os.Stderr)

	booksFile := defaultBooksFile
	if len(os.Args) > 1 {
		booksFile = os.Args[1]
	}

	// Clean up any existing database files
	fmt.Println("Cleaning up existing database files...")
	dbPath := cfg.Database.Path
	for _, file := range []string{dbPath, dbPath + "-shm", dbPath + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}
	fmt.Println("Database cleanup complete.")

	ctx := context.Background()
	manager, err := library.NewLibraryManager(ctx, dbPath, log, library.Options{
		SeedSamples: false,
		Admin: library.AdminSeed{
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	fmt.Printf("Importing books from %s...\n", booksFile)
	f, err := os.Open(booksFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading books file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	inputs, err := library.ReadBookInputs(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", library.Message(err))
		os.Exit(1)
	}
	books, err := manager.Catalog.Import(ctx, inputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", library.Message(err))
		os.Exit(1)
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", len(books))

	fmt.Println("\nImported books:")
	fmt.Printf("%-38s %-50s %-30s\n", "ID", "Title", "Author")
	fmt.Println(strings.Repeat("-", 120))
	for _, book := range books {
		fmt.Printf("%-38s %-50s %-30s\n", book.ID, truncateString(book.Title, 50), truncateString(book.Author, 30))
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
