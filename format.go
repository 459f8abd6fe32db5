package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"library-catalog/library"
)

func printBooks(w io.Writer, books []library.Book) {
	fmt.Fprintf(w, "%-38s %-30s %-22s %-12s %8s %6s %6s\n", "ID", "Title", "Author", "Category", "Price", "Stock", "Rating")
	fmt.Fprintln(w, strings.Repeat("-", 128))
	for _, b := range books {
		fmt.Fprintf(w, "%-38s %-30s %-22s %-12s %8.2f %6d %6.1f\n",
			b.ID,
			truncateString(b.Title, 30),
			truncateString(b.Author, 22),
			truncateString(b.Category, 12),
			b.Price,
			b.Stock,
			b.Rating)
	}
}

func printBorrows(borrows []library.ActiveBorrow) {
	fmt.Printf("%-38s %-30s %-38s %s\n", "Record", "Title", "User", "Borrowed")
	fmt.Println(strings.Repeat("-", 128))
	for _, ab := range borrows {
		title := "(" + library.Message(library.ErrBookUnavailable) + ")"
		if ab.Book != nil {
			title = ab.Book.Title
		}
		fmt.Printf("%-38s %-30s %-38s %s\n", ab.ID, truncateString(title, 30), ab.UserID, ab.BorrowedAt.Format("2006-01-02 15:04"))
	}
}

// bookTitle quotes the title of id, or says the book is gone.
func bookTitle(mgr *library.LibraryManager, id string) string {
	b, err := mgr.Catalog.Get(id)
	if err != nil {
		return fmt.Sprintf("book %s (%s)", id, library.Message(library.ErrBookUnavailable))
	}
	return "'" + b.Title + "'"
}

func parseOptionalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseOptionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
