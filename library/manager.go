package library

import (
	"context"
	"slices"

	"library-catalog/logger"
)

// Options configures NewLibraryManager.
type Options struct {
	SeedSamples      bool
	OneReviewPerUser bool
	Admin            AdminSeed
}

// LibraryManager constructs the services once over a shared Store and adds
// the session-aware operations used by the CLI.
type LibraryManager struct {
	Catalog  *Catalog
	Ledger   *Ledger
	Reviews  *Reviews
	Wishlist *Wishlist
	Accounts *Accounts

	db *Database
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(ctx context.Context, dbPath string, log logger.Logger, opts Options) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	lm, err := New(ctx, db, log, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	lm.db = db
	return lm, nil
}

// New wires the services over st, hydrating each from its snapshot.
func New(ctx context.Context, st Store, log logger.Logger, opts Options) (*LibraryManager, error) {
	catalog, err := NewCatalog(ctx, st, log, opts.SeedSamples)
	if err != nil {
		return nil, err
	}
	accounts, err := NewAccounts(ctx, st, log, opts.Admin)
	if err != nil {
		return nil, err
	}
	ledger, err := NewLedger(ctx, st, log, catalog, accounts)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{
		Catalog:  catalog,
		Ledger:   ledger,
		Reviews:  NewReviews(catalog, log, opts.OneReviewPerUser),
		Wishlist: NewWishlist(accounts, catalog, log),
		Accounts: accounts,
	}, nil
}

// Close closes the underlying database, if the manager opened one.
func (lm *LibraryManager) Close() error {
	if lm.db == nil {
		return nil
	}
	return lm.db.Close()
}

// Database returns the SQLite store, or nil for other stores.
func (lm *LibraryManager) Database() *Database { return lm.db }

// ------------------ Session ------------------

// Login authenticates and loads the user's active borrows into the session.
func (lm *LibraryManager) Login(ctx context.Context, email, password string) (*User, error) {
	u, err := lm.Accounts.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	ids := lm.Ledger.ActiveIDs(u.ID)
	if err := lm.Accounts.RefreshCurrentUser(ctx, u.ID, func(s *User) { s.BorrowedBooks = ids }); err != nil {
		return nil, err
	}
	return lm.Accounts.CurrentUser(), nil
}

func (lm *LibraryManager) Logout(ctx context.Context) error { return lm.Accounts.Logout(ctx) }

func (lm *LibraryManager) currentUser(op string) (*User, error) {
	u := lm.Accounts.CurrentUser()
	if u == nil {
		return nil, fail(op, ErrNotLoggedIn)
	}
	return u, nil
}

func (lm *LibraryManager) requireAdmin(op string) error {
	if err := lm.Accounts.RequireAdmin(); err != nil {
		return fail(op, err)
	}
	return nil
}

// ------------------ Admin ------------------

func (lm *LibraryManager) CreateBook(ctx context.Context, in BookInput) (*Book, error) {
	if err := lm.requireAdmin("create book"); err != nil {
		return nil, err
	}
	return lm.Catalog.Create(ctx, in)
}

func (lm *LibraryManager) UpdateBook(ctx context.Context, id string, patch BookPatch) (*Book, error) {
	if err := lm.requireAdmin("update book"); err != nil {
		return nil, err
	}
	return lm.Catalog.Update(ctx, id, patch)
}

func (lm *LibraryManager) DeleteBook(ctx context.Context, id string) error {
	if err := lm.requireAdmin("delete book"); err != nil {
		return err
	}
	return lm.Catalog.Delete(ctx, id)
}

// Stats summarises the library for the admin dashboard.
func (lm *LibraryManager) Stats() Stats {
	books := lm.Catalog.All()
	s := Stats{
		TotalBooks:    len(books),
		TotalUsers:    len(lm.Accounts.ListUsers()),
		ActiveBorrows: lm.Ledger.ActiveCount(),
	}
	for _, b := range books {
		if b.Stock == 0 {
			s.OutOfStock++
		}
	}
	return s
}

// ------------------ Current user ------------------

func (lm *LibraryManager) Borrow(ctx context.Context, bookID string) (*BorrowRecord, error) {
	u, err := lm.currentUser("borrow")
	if err != nil {
		return nil, err
	}
	return lm.Ledger.Borrow(ctx, bookID, u.ID)
}

// Return closes a record. Users may only return their own borrows; admins
// may return any.
func (lm *LibraryManager) Return(ctx context.Context, recordID string) (*BorrowRecord, error) {
	u, err := lm.currentUser("return")
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		rec, err := lm.Ledger.Get(recordID)
		if err != nil {
			return nil, err
		}
		if rec.UserID != u.ID {
			return nil, fail("return", ErrRecordNotFound)
		}
	}
	return lm.Ledger.Return(ctx, recordID)
}

func (lm *LibraryManager) MyBorrows() ([]ActiveBorrow, error) {
	u, err := lm.currentUser("my borrows")
	if err != nil {
		return nil, err
	}
	return lm.Ledger.BorrowedByUser(u.ID), nil
}

func (lm *LibraryManager) AddReview(ctx context.Context, bookID string, rating int, comment string) (*Review, error) {
	u, err := lm.currentUser("add review")
	if err != nil {
		return nil, err
	}
	return lm.Reviews.Add(ctx, ReviewInput{
		BookID:   bookID,
		UserID:   u.ID,
		UserName: u.Name,
		Rating:   rating,
		Comment:  comment,
	})
}

func (lm *LibraryManager) ToggleWishlist(ctx context.Context, bookID string) (bool, error) {
	u, err := lm.currentUser("wishlist")
	if err != nil {
		return false, err
	}
	return lm.Wishlist.Toggle(ctx, u.ID, bookID)
}

func (lm *LibraryManager) MyWishlist() ([]Book, error) {
	u, err := lm.currentUser("wishlist")
	if err != nil {
		return nil, err
	}
	return lm.Wishlist.Books(u.ID)
}

// MyHistory lists every borrow of the current user, newest first.
func (lm *LibraryManager) MyHistory() ([]BorrowRecord, error) {
	u, err := lm.currentUser("history")
	if err != nil {
		return nil, err
	}
	return lm.Ledger.History(u.ID), nil
}

// EditReview changes one of the current user's reviews. Admins may edit any
// review; other users get ErrReviewNotFound for reviews they did not write.
func (lm *LibraryManager) EditReview(ctx context.Context, bookID, reviewID string, patch ReviewPatch) (*Review, error) {
	u, err := lm.currentUser("edit review")
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		reviews, err := lm.Reviews.List(bookID)
		if err != nil {
			return nil, err
		}
		i := slices.IndexFunc(reviews, func(r Review) bool { return r.ID == reviewID })
		if i < 0 || reviews[i].UserID != u.ID {
			return nil, fail("edit review", ErrReviewNotFound)
		}
	}
	return lm.Reviews.Update(ctx, bookID, reviewID, patch)
}

func (lm *LibraryManager) UpdateProfile(ctx context.Context, patch ProfilePatch) (*User, error) {
	u, err := lm.currentUser("update profile")
	if err != nil {
		return nil, err
	}
	return lm.Accounts.UpdateProfile(ctx, u.ID, patch)
}
