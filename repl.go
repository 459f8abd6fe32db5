package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"library-catalog/library"
)

// readPassword is a seam over term.ReadPassword so piped input still works.
var readPassword = func(sc *bufio.Scanner, prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if !sc.Scan() {
			return "", io.EOF
		}
		return strings.TrimSpace(sc.Text()), nil
	}
	pw, err := term.ReadPassword(fd)
	fmt.Println() // Add newline after password input
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pw)), nil
}

// ask prints prompt and reads one trimmed line. ok is false on EOF.
func ask(sc *bufio.Scanner, prompt string) (string, bool) {
	fmt.Print(prompt)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

// report prints the user-facing message and keeps the full chain in the log.
func (a *app) report(what string, err error) {
	a.log.Debug(what+" failed", map[string]interface{}{"error": err.Error(), "kind": library.KindOf(err).String()})
	fmt.Printf("Error %s: %s\n", what, library.Message(err))
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  Catalog: list books, browse, search book, categories, top rated, show book")
	fmt.Println("  Account: register, login, logout, whoami, edit profile")
	fmt.Println("  Borrowing: borrow, return, my books, history")
	fmt.Println("  Reviews: review, edit review")
	fmt.Println("  Wishlist: wishlist, toggle wishlist")
	fmt.Println("  Admin: add book, update book, delete book, stats, active borrows, recent activity, list users")
	fmt.Println("  System: help, exit")
}

func runREPL(ctx context.Context, a *app, in io.Reader) {
	scanner := bufio.NewScanner(in)

	fmt.Println("Welcome to the Library Catalog!")
	if u := a.mgr.Accounts.CurrentUser(); u != nil {
		fmt.Printf("Logged in as %s (%s)\n", u.Name, u.Role)
	}
	printHelp()

	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())

		switch cmd {
		case "":
		case "help":
			printHelp()
		case "list books":
			a.handleListBooks()
		case "browse":
			a.handleBrowse(scanner)
		case "search book":
			a.handleSearchBooks(scanner)
		case "categories":
			a.handleCategories()
		case "top rated":
			a.handleTopRated()
		case "show book":
			a.handleShowBook(scanner)
		case "register":
			a.handleRegister(ctx, scanner)
		case "login":
			a.handleLogin(ctx, scanner)
		case "logout":
			a.handleLogout(ctx)
		case "whoami":
			a.handleWhoAmI()
		case "edit profile":
			a.handleEditProfile(ctx, scanner)
		case "borrow":
			a.handleBorrow(ctx, scanner)
		case "return":
			a.handleReturn(ctx, scanner)
		case "my books":
			a.handleMyBooks()
		case "history":
			a.handleHistory()
		case "review":
			a.handleReview(ctx, scanner)
		case "edit review":
			a.handleEditReview(ctx, scanner)
		case "wishlist":
			a.handleWishlist()
		case "toggle wishlist":
			a.handleToggleWishlist(ctx, scanner)
		case "add book":
			a.handleAddBook(ctx, scanner)
		case "update book":
			a.handleUpdateBook(ctx, scanner)
		case "delete book":
			a.handleDeleteBook(ctx, scanner)
		case "stats":
			a.handleStats(ctx)
		case "active borrows":
			a.handleActiveBorrows()
		case "recent activity":
			a.handleRecentActivity()
		case "list users":
			a.handleListUsers()
		case "exit", "quit":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Unknown command. Type 'help' to see the available commands.")
		}
	}
}

// ------------------ Catalog ------------------

func (a *app) handleListBooks() {
	books := a.mgr.Catalog.All()
	if len(books) == 0 {
		fmt.Println("No books in library.")
		return
	}
	printBooks(os.Stdout, books)
}

func (a *app) handleBrowse(sc *bufio.Scanner) {
	var f library.Filter
	var ok bool
	if f.Search, ok = ask(sc, "Search (optional): "); !ok {
		return
	}
	if f.Category, ok = ask(sc, "Category (optional): "); !ok {
		return
	}
	minPrice, ok := ask(sc, "Min price (optional): ")
	if !ok {
		return
	}
	maxPrice, ok := ask(sc, "Max price (optional): ")
	if !ok {
		return
	}
	avail, ok := ask(sc, "Availability [all|available|outOfStock]: ")
	if !ok {
		return
	}
	sortBy, ok := ask(sc, "Sort [title|titleDesc|price|priceDesc|rating|ratingDesc] (optional): ")
	if !ok {
		return
	}

	var err error
	if f.MinPrice, err = parseOptionalFloat(minPrice); err != nil {
		fmt.Printf("Invalid min price: %s\n", minPrice)
		return
	}
	if f.MaxPrice, err = parseOptionalFloat(maxPrice); err != nil {
		fmt.Printf("Invalid max price: %s\n", maxPrice)
		return
	}
	f.Availability = library.Availability(avail)

	books := a.mgr.Catalog.Browse(f, library.SortBy(sortBy))
	if len(books) == 0 {
		fmt.Println("No books match those filters.")
		return
	}
	printBooks(os.Stdout, books)
}

func (a *app) handleSearchBooks(sc *bufio.Scanner) {
	query, ok := ask(sc, "Query: ")
	if !ok {
		return
	}
	books := a.mgr.Catalog.Search(query)
	if len(books) == 0 {
		fmt.Printf("No books found matching '%s'.\n", query)
		return
	}
	fmt.Printf("Found %d book(s) matching '%s':\n", len(books), query)
	printBooks(os.Stdout, books)
}

func (a *app) handleCategories() {
	for _, c := range a.mgr.Catalog.Categories() {
		fmt.Printf("%-25s %d book(s)\n", c, len(a.mgr.Catalog.ByCategory(c)))
	}
}

func (a *app) handleTopRated() {
	books := a.mgr.Catalog.TopRated(a.cfg.Catalog.TopRatedLimit)
	if len(books) == 0 {
		fmt.Println("No books in library.")
		return
	}
	printBooks(os.Stdout, books)
}

func (a *app) handleShowBook(sc *bufio.Scanner) {
	id, ok := ask(sc, "Book ID: ")
	if !ok {
		return
	}
	b, err := a.mgr.Catalog.Get(id)
	if err != nil {
		a.report("showing book", err)
		return
	}

	fmt.Printf("%s by %s\n", b.Title, b.Author)
	fmt.Printf("  ID: %s | Category: %s | Price: %.2f | In stock: %d\n", b.ID, b.Category, b.Price, b.Stock)
	if b.Description != "" {
		fmt.Printf("  %s\n", b.Description)
	}
	fmt.Printf("  Rating: %.1f (%d review(s))\n", b.Rating, len(b.Reviews))
	for _, r := range b.Reviews {
		by := r.UserName
		if by == "" {
			by = r.UserID
		}
		fmt.Printf("  [%s] %d/5 by %s: %s\n", r.ID, r.Rating, by, r.Comment)
	}
}

// ------------------ Account ------------------

func (a *app) handleRegister(ctx context.Context, sc *bufio.Scanner) {
	name, ok := ask(sc, "Name: ")
	if !ok {
		return
	}
	email, ok := ask(sc, "Email: ")
	if !ok {
		return
	}
	password, err := readPassword(sc, fmt.Sprintf("Enter password for %s: ", name))
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}

	u, err := a.mgr.Accounts.Register(ctx, library.RegisterInput{Name: name, Email: email, Password: password})
	if err != nil {
		a.report("registering", err)
		return
	}
	fmt.Printf("Registered %s. Use 'login' to sign in.\n", u.Email)
}

func (a *app) handleLogin(ctx context.Context, sc *bufio.Scanner) {
	email, ok := ask(sc, "Email: ")
	if !ok {
		return
	}
	password, err := readPassword(sc, "Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	u, err := a.mgr.Login(ctx, email, password)
	if err != nil {
		a.report("logging in", err)
		return
	}
	fmt.Printf("Welcome back, %s!\n", u.Name)
}

func (a *app) handleLogout(ctx context.Context) {
	if err := a.mgr.Logout(ctx); err != nil {
		a.report("logging out", err)
		return
	}
	fmt.Println("Logged out.")
}

func (a *app) handleWhoAmI() {
	u := a.mgr.Accounts.CurrentUser()
	if u == nil {
		fmt.Println("Not logged in.")
		return
	}
	fmt.Printf("%s <%s> (%s), member since %s\n", u.Name, u.Email, u.Role, u.CreatedAt.Format("2006-01-02"))
	fmt.Printf("Borrowed: %d | Wishlist: %d\n", len(u.BorrowedBooks), len(u.Wishlist))
}

func (a *app) handleEditProfile(ctx context.Context, sc *bufio.Scanner) {
	name, ok := ask(sc, "New name (blank to keep): ")
	if !ok {
		return
	}
	email, ok := ask(sc, "New email (blank to keep): ")
	if !ok {
		return
	}
	var patch library.ProfilePatch
	if name != "" {
		patch.Name = &name
	}
	if email != "" {
		patch.Email = &email
	}
	u, err := a.mgr.UpdateProfile(ctx, patch)
	if err != nil {
		a.report("updating profile", err)
		return
	}
	fmt.Printf("Profile saved: %s <%s>\n", u.Name, u.Email)
}

// ------------------ Borrowing ------------------

func (a *app) handleBorrow(ctx context.Context, sc *bufio.Scanner) {
	id, ok := ask(sc, "Book ID: ")
	if !ok {
		return
	}
	rec, err := a.mgr.Borrow(ctx, id)
	if err != nil {
		a.report("borrowing book", err)
		return
	}
	b, _ := a.mgr.Catalog.Get(id)
	fmt.Printf("Borrowed '%s' (record %s). Copies left: %d\n", b.Title, rec.ID, b.Stock)
}

func (a *app) handleReturn(ctx context.Context, sc *bufio.Scanner) {
	id, ok := ask(sc, "Record ID: ")
	if !ok {
		return
	}
	rec, err := a.mgr.Return(ctx, id)
	if err != nil {
		a.report("returning book", err)
		return
	}
	fmt.Printf("Returned %s (%s).\n", bookTitle(a.mgr, rec.BookID), rec.ID)
}

func (a *app) handleMyBooks() {
	borrows, err := a.mgr.MyBorrows()
	if err != nil {
		a.report("listing borrows", err)
		return
	}
	if len(borrows) == 0 {
		fmt.Println("You have no borrowed books.")
		return
	}
	printBorrows(borrows)
}

func (a *app) handleHistory() {
	records, err := a.mgr.MyHistory()
	if err != nil {
		a.report("listing history", err)
		return
	}
	if len(records) == 0 {
		fmt.Println("No borrowing history yet.")
		return
	}
	fmt.Printf("%-38s %-30s %-17s %s\n", "Record", "Title", "Borrowed", "Returned")
	fmt.Println(strings.Repeat("-", 105))
	for _, r := range records {
		returned := "-"
		if r.ReturnedAt != nil {
			returned = r.ReturnedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-38s %-30s %-17s %s\n", r.ID, truncateString(bookTitle(a.mgr, r.BookID), 30), r.BorrowedAt.Format("2006-01-02 15:04"), returned)
	}
}

// ------------------ Reviews ------------------

func (a *app) handleReview(ctx context.Context, sc *bufio.Scanner) {
	id, ok := ask(sc, "Book ID: ")
	if !ok {
		return
	}
	ratingStr, ok := ask(sc, "Rating (1-5): ")
	if !ok {
		return
	}
	rating, err := strconv.Atoi(ratingStr)
	if err != nil {
		fmt.Printf("Invalid rating: %s\n", ratingStr)
		return
	}
	comment, ok := ask(sc, "Comment: ")
	if !ok {
		return
	}

	if _, err := a.mgr.AddReview(ctx, id, rating, comment); err != nil {
		a.report("adding review", err)
		return
	}
	b, _ := a.mgr.Catalog.Get(id)
	fmt.Printf("Thanks! '%s' is now rated %.1f.\n", b.Title, b.Rating)
}

func (a *app) handleEditReview(ctx context.Context, sc *bufio.Scanner) {
	bookID, ok := ask(sc, "Book ID: ")
	if !ok {
		return
	}
	reviewID, ok := ask(sc, "Review ID: ")
	if !ok {
		return
	}
	ratingStr, ok := ask(sc, "New rating (blank to keep): ")
	if !ok {
		return
	}
	comment, ok := ask(sc, "New comment (blank to keep): ")
	if !ok {
		return
	}

	var patch library.ReviewPatch
	if ratingStr != "" {
		rating, err := strconv.Atoi(ratingStr)
		if err != nil {
			fmt.Printf("Invalid rating: %s\n", ratingStr)
			return
		}
		patch.Rating = &rating
	}
	if comment != "" {
		patch.Comment = &comment
	}
	if _, err := a.mgr.EditReview(ctx, bookID, reviewID, patch); err != nil {
		a.report("editing review", err)
		return
	}
	fmt.Println("Review updated.")
}

// ------------------ Wishlist ------------------

func (a *app) handleWishlist() {
	books, err := a.mgr.MyWishlist()
	if err != nil {
		a.report("reading wishlist", err)
		return
	}
	if len(books) == 0 {
		fmt.Println("Your wishlist is empty.")
		return
	}
	printBooks(os.Stdout, books)
}

func (a *app) handleToggleWishlist(ctx context.Context, sc *bufio.Scanner) {
	id, ok := ask(sc, "Book ID: ")
	if !ok {
		return
	}
	on, err := a.mgr.ToggleWishlist(ctx, id)
	if err != nil {
		a.report("updating wishlist", err)
		return
	}
	if on {
		fmt.Printf("Added %s to your wishlist.\n", bookTitle(a.mgr, id))
	} else {
		fmt.Printf("Removed %s from your wishlist.\n", bookTitle(a.mgr, id))
	}
}

// ------------------ Admin ------------------

func (a *app) handleAddBook(ctx context.Context, sc *bufio.Scanner) {
	var in library.BookInput
	var ok bool
	if in.Title, ok = ask(sc, "Title: "); !ok {
		return
	}
	if in.Author, ok = ask(sc, "Author: "); !ok {
		return
	}
	if in.Category, ok = ask(sc, "Category: "); !ok {
		return
	}
	priceStr, ok := ask(sc, "Price: ")
	if !ok {
		return
	}
	stockStr, ok := ask(sc, "Copies in stock: ")
	if !ok {
		return
	}
	if in.Description, ok = ask(sc, "Description (optional): "); !ok {
		return
	}

	var err error
	if in.Price, err = parseOptionalFloat(priceStr); err != nil {
		fmt.Printf("Invalid price: %s\n", priceStr)
		return
	}
	if in.Stock, err = parseOptionalInt(stockStr); err != nil {
		fmt.Printf("Invalid stock: %s\n", stockStr)
		return
	}

	b, err := a.mgr.CreateBook(ctx, in)
	if err != nil {
		a.report("adding book", err)
		return
	}
	fmt.Printf("Added book '%s' with ID %s\n", b.Title, b.ID)
}

func (a *app) handleUpdateBook(ctx context.Context, sc *bufio.Scanner) {
	id, ok := ask(sc, "Book ID: ")
	if !ok {
		return
	}
	if _, err := a.mgr.Catalog.Get(id); err != nil {
		a.report("updating book", err)
		return
	}

	fmt.Println("Press Enter to keep a field unchanged.")
	var patch library.BookPatch
	for _, field := range []struct {
		label string
		dst   **string
	}{
		{"Title: ", &patch.Title},
		{"Author: ", &patch.Author},
		{"Category: ", &patch.Category},
		{"Description: ", &patch.Description},
	} {
		v, ok := ask(sc, field.label)
		if !ok {
			return
		}
		if v != "" {
			*field.dst = &v
		}
	}
	priceStr, ok := ask(sc, "Price: ")
	if !ok {
		return
	}
	stockStr, ok := ask(sc, "Copies in stock: ")
	if !ok {
		return
	}
	if priceStr != "" {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			fmt.Printf("Invalid price: %s\n", priceStr)
			return
		}
		patch.Price = &price
	}
	if stockStr != "" {
		stock, err := strconv.Atoi(stockStr)
		if err != nil {
			fmt.Printf("Invalid stock: %s\n", stockStr)
			return
		}
		patch.Stock = &stock
	}

	b, err := a.mgr.UpdateBook(ctx, id, patch)
	if err != nil {
		a.report("updating book", err)
		return
	}
	fmt.Printf("Updated '%s'.\n", b.Title)
}

func (a *app) handleDeleteBook(ctx context.Context, sc *bufio.Scanner) {
	id, ok := ask(sc, "Book ID: ")
	if !ok {
		return
	}
	title := bookTitle(a.mgr, id)
	confirm, ok := ask(sc, fmt.Sprintf("Delete %s? [y/N]: ", title))
	if !ok || !strings.EqualFold(confirm, "y") {
		fmt.Println("Cancelled.")
		return
	}
	if err := a.mgr.DeleteBook(ctx, id); err != nil {
		a.report("deleting book", err)
		return
	}
	fmt.Printf("Deleted %s.\n", title)
}

func (a *app) handleStats(ctx context.Context) {
	if err := a.mgr.Accounts.RequireAdmin(); err != nil {
		a.report("reading stats", err)
		return
	}
	s := a.mgr.Stats()
	fmt.Printf("Books: %d | Users: %d | Borrowed: %d | Out of stock: %d\n",
		s.TotalBooks, s.TotalUsers, s.ActiveBorrows, s.OutOfStock)

	if db := a.mgr.Database(); db != nil {
		if ts, err := db.UpdatedAt(ctx, library.KeyBorrows); err == nil && !ts.IsZero() {
			fmt.Printf("Last circulation change: %s\n", ts.Local().Format("2006-01-02 15:04"))
		}
	}
}

func (a *app) handleActiveBorrows() {
	if err := a.mgr.Accounts.RequireAdmin(); err != nil {
		a.report("listing borrows", err)
		return
	}
	borrows := a.mgr.Ledger.AllActive()
	if len(borrows) == 0 {
		fmt.Println("No books are currently borrowed.")
		return
	}
	printBorrows(borrows)
}

func (a *app) handleRecentActivity() {
	if err := a.mgr.Accounts.RequireAdmin(); err != nil {
		a.report("listing activity", err)
		return
	}
	borrows := a.mgr.Ledger.RecentActivity(a.cfg.Catalog.RecentActivityLimit)
	if len(borrows) == 0 {
		fmt.Println("No recent activity.")
		return
	}
	printBorrows(borrows)
}

func (a *app) handleListUsers() {
	if err := a.mgr.Accounts.RequireAdmin(); err != nil {
		a.report("listing users", err)
		return
	}
	users := a.mgr.Accounts.ListUsers()
	if len(users) == 0 {
		fmt.Println("No members registered.")
		return
	}
	fmt.Printf("%-38s %-25s %-30s %s\n", "ID", "Name", "Email", "Borrowed")
	fmt.Println(strings.Repeat("-", 105))
	for _, u := range users {
		fmt.Printf("%-38s %-25s %-30s %d\n", u.ID, truncateString(u.Name, 25), truncateString(u.Email, 30), len(a.mgr.Ledger.ActiveIDs(u.ID)))
	}
}
