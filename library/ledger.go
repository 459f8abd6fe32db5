package library

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"library-catalog/logger"
)

// Ledger owns the borrow records. For each (user, book) pair at most one
// record is active, and every active record accounts for exactly one copy
// taken off the book's stock.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	log     logger.Logger
	catalog *Catalog
	session SessionRefresher
	records []BorrowRecord

	now   func() time.Time
	newID func() string
}

// NewLedger hydrates the ledger from st. session may be nil.
func NewLedger(ctx context.Context, st Store, log logger.Logger, catalog *Catalog, session SessionRefresher) (*Ledger, error) {
	l := &Ledger{
		store:   st,
		log:     log.WithFields(map[string]interface{}{"component": "ledger"}),
		catalog: catalog,
		session: session,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	if _, err := loadJSON(ctx, st, KeyBorrows, &l.records); err != nil {
		return nil, fail("load ledger", err)
	}
	return l, nil
}

func (l *Ledger) hasActive(userID, bookID string) bool {
	return slices.ContainsFunc(l.records, func(r BorrowRecord) bool {
		return r.UserID == userID && r.BookID == bookID && !r.Returned
	})
}

// Borrow takes one copy of bookID for userID. The stock decrement and the new
// record are written together or not at all.
func (l *Ledger) Borrow(ctx context.Context, bookID, userID string) (*BorrowRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := BorrowRecord{
		ID:         l.newID(),
		BookID:     bookID,
		UserID:     userID,
		BorrowedAt: l.now(),
		Returned:   false,
	}
	records := append(slices.Clip(l.records), rec)
	entry, err := encode(KeyBorrows, records)
	if err != nil {
		return nil, fail("borrow", err)
	}

	_, err = l.catalog.mutate(ctx, bookID, func(b *Book) error {
		if b.Stock <= 0 {
			return ErrOutOfStock
		}
		if l.hasActive(userID, bookID) {
			return ErrAlreadyBorrowed
		}
		b.Stock--
		return nil
	}, entry)
	if err != nil {
		l.log.Warn("borrow rejected", map[string]interface{}{"book_id": bookID, "user_id": userID, "error": err.Error()})
		return nil, fail("borrow", err)
	}
	l.records = records

	l.log.Info("book borrowed", map[string]interface{}{"book_id": bookID, "user_id": userID, "record_id": rec.ID})
	l.refreshSession(ctx, userID)
	return &rec, nil
}

// Return closes an active record and puts the copy back. A record whose book
// has been deleted is still closed; there is no stock to restore.
func (l *Ledger) Return(ctx context.Context, recordID string) (*BorrowRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := slices.IndexFunc(l.records, func(r BorrowRecord) bool { return r.ID == recordID })
	if i < 0 || l.records[i].Returned {
		l.log.Warn("return rejected", map[string]interface{}{"record_id": recordID})
		return nil, fail("return", ErrRecordNotFound)
	}

	records := slices.Clone(l.records)
	at := l.now()
	records[i].Returned = true
	records[i].ReturnedAt = &at
	entry, err := encode(KeyBorrows, records)
	if err != nil {
		return nil, fail("return", err)
	}
	rec := records[i]
	if err := l.catalog.restock(ctx, rec.BookID, entry); err != nil {
		return nil, fail("return", err)
	}
	l.records = records

	l.log.Info("book returned", map[string]interface{}{"book_id": rec.BookID, "user_id": rec.UserID, "record_id": rec.ID})
	l.refreshSession(ctx, rec.UserID)
	return &rec, nil
}

// refreshSession pushes the user's active record ids to the session. The
// ledger write has already committed, so a failure here is only logged.
func (l *Ledger) refreshSession(ctx context.Context, userID string) {
	if l.session == nil {
		return
	}
	ids := l.activeIDs(userID)
	err := l.session.RefreshCurrentUser(ctx, userID, func(u *User) { u.BorrowedBooks = ids })
	if err != nil {
		l.log.Error("refresh session", map[string]interface{}{"user_id": userID, "error": err.Error()})
	}
}

func (l *Ledger) activeIDs(userID string) []string {
	ids := []string{}
	for _, r := range l.records {
		if r.UserID == userID && !r.Returned {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// ActiveIDs lists the ids of userID's active records in borrow order.
func (l *Ledger) ActiveIDs(userID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeIDs(userID)
}

// ------------------ Queries ------------------

func (l *Ledger) Get(recordID string) (*BorrowRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.IndexFunc(l.records, func(r BorrowRecord) bool { return r.ID == recordID })
	if i < 0 {
		return nil, fail("get record", ErrRecordNotFound)
	}
	rec := l.records[i]
	return &rec, nil
}

func (l *Ledger) join(keep func(BorrowRecord) bool) []ActiveBorrow {
	l.mu.Lock()
	records := slices.Clone(l.records)
	l.mu.Unlock()

	out := []ActiveBorrow{}
	for _, r := range records {
		if r.Returned || !keep(r) {
			continue
		}
		b, _ := l.catalog.lookup(r.BookID)
		out = append(out, ActiveBorrow{BorrowRecord: r, Book: b})
	}
	return out
}

// BorrowedByUser returns userID's active records joined with their books.
func (l *Ledger) BorrowedByUser(userID string) []ActiveBorrow {
	return l.join(func(r BorrowRecord) bool { return r.UserID == userID })
}

// AllActive returns every active record joined with its book.
func (l *Ledger) AllActive() []ActiveBorrow {
	return l.join(func(BorrowRecord) bool { return true })
}

// RecentActivity returns up to limit active borrows, newest first.
func (l *Ledger) RecentActivity(limit int) []ActiveBorrow {
	active := l.AllActive()
	slices.Reverse(active)
	if limit >= 0 && limit < len(active) {
		active = active[:limit]
	}
	return active
}

// History returns all of userID's records, returned or not, newest first.
func (l *Ledger) History(userID string) []BorrowRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []BorrowRecord{}
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].UserID == userID {
			out = append(out, l.records[i])
		}
	}
	return out
}

func (l *Ledger) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if !r.Returned {
			n++
		}
	}
	return n
}
