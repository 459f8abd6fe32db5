package library

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"library-catalog/logger"
)

// Catalog owns the book collection. It is the only writer of Book fields;
// the ledger and review aggregator request changes through it.
type Catalog struct {
	mu    sync.Mutex
	store Store
	log   logger.Logger
	books []Book

	now   func() time.Time
	newID func() string
}

// NewCatalog hydrates the catalog from st. When the stored collection is
// missing or empty and seed is set, the sample books are written first.
func NewCatalog(ctx context.Context, st Store, log logger.Logger, seed bool) (*Catalog, error) {
	c := &Catalog{
		store: st,
		log:   log.WithFields(map[string]interface{}{"component": "catalog"}),
		now:   time.Now,
		newID: uuid.NewString,
	}
	if _, err := loadJSON(ctx, st, KeyBooks, &c.books); err != nil {
		return nil, fail("load catalog", err)
	}
	if len(c.books) == 0 && seed {
		books := sampleBooks(c.now())
		if err := c.persist(ctx, books); err != nil {
			return nil, fail("seed catalog", err)
		}
		c.books = books
		c.log.Info("catalog seeded", map[string]interface{}{"books": len(books)})
	}
	return c, nil
}

func sampleBooks(now time.Time) []Book {
	return []Book{
		{
			ID:          "1",
			Title:       "To Kill a Mockingbird",
			Author:      "Harper Lee",
			Category:    "Classic",
			Price:       299,
			Stock:       5,
			Image:       "/images/to-kill-a-mockingbird.jpeg",
			Description: "A novel about racial injustice in the Deep South, through the eyes of young Scout Finch.",
			Reviews:     []Review{},
			CreatedAt:   now,
		},
		{
			ID:          "2",
			Title:       "1984",
			Author:      "George Orwell",
			Category:    "Dystopian",
			Price:       249,
			Stock:       4,
			Image:       "https://covers.openlibrary.org/b/id/7222246-L.jpg",
			Description: "A chilling depiction of totalitarian government surveillance and control.",
			Reviews:     []Review{},
			CreatedAt:   now,
		},
		{
			ID:          "3",
			Title:       "The Great Gatsby",
			Author:      "F. Scott Fitzgerald",
			Category:    "Classic",
			Price:       279,
			Stock:       3,
			Image:       "https://covers.openlibrary.org/b/id/7352161-L.jpg",
			Description: "The tragic story of Jay Gatsby and his unrequited love for Daisy Buchanan.",
			Reviews:     []Review{},
			CreatedAt:   now,
		},
	}
}

// persist writes books, plus any extra entries, in one store call.
func (c *Catalog) persist(ctx context.Context, books []Book, with ...Entry) error {
	entry, err := encode(KeyBooks, books)
	if err != nil {
		return err
	}
	if err := c.store.SetMany(ctx, append([]Entry{entry}, with...)...); err != nil {
		c.log.Error("persist catalog", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func (c *Catalog) indexOf(id string) int {
	return slices.IndexFunc(c.books, func(b Book) bool { return b.ID == id })
}

// ------------------ Admin CRUD ------------------

func (c *Catalog) Create(ctx context.Context, in BookInput) (*Book, error) {
	if err := validateInput(in); err != nil {
		return nil, fail("create book", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	b := Book{
		ID:          c.newID(),
		Title:       in.Title,
		Author:      in.Author,
		Category:    in.Category,
		Price:       in.Price,
		Stock:       in.Stock,
		Image:       in.Image,
		Description: in.Description,
		Rating:      0,
		Reviews:     []Review{},
		CreatedAt:   c.now(),
	}
	books := append(slices.Clip(c.books), b)
	if err := c.persist(ctx, books); err != nil {
		return nil, fail("create book", err)
	}
	c.books = books

	c.log.Info("book created", map[string]interface{}{"book_id": b.ID, "title": b.Title})
	out := cloneBook(b)
	return &out, nil
}

// Update merges patch into the book. Rating and reviews are not patchable.
func (c *Catalog) Update(ctx context.Context, id string, patch BookPatch) (*Book, error) {
	if err := validateInput(patch); err != nil {
		return nil, fail("update book", err)
	}
	b, err := c.mutate(ctx, id, func(b *Book) error {
		patch.apply(b)
		return nil
	})
	if err != nil {
		return nil, fail("update book", err)
	}
	c.log.Info("book updated", map[string]interface{}{"book_id": id})
	return b, nil
}

// Delete removes the book if present. Borrow records and wishlist entries
// that point at it are left alone; readers treat them as unavailable.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	books := slices.DeleteFunc(slices.Clone(c.books), func(b Book) bool { return b.ID == id })
	if err := c.persist(ctx, books); err != nil {
		return fail("delete book", err)
	}
	c.books = books
	c.log.Info("book deleted", map[string]interface{}{"book_id": id})
	return nil
}

// mutate applies fn to a copy of book id and persists the catalog with the
// copy in place, together with any extra entries. The in-memory catalog only
// changes once the write has succeeded.
func (c *Catalog) mutate(ctx context.Context, id string, fn func(b *Book) error, with ...Entry) (*Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil, ErrBookNotFound
	}
	b := cloneBook(c.books[i])
	if err := fn(&b); err != nil {
		return nil, err
	}

	books := slices.Clone(c.books)
	books[i] = b
	if err := c.persist(ctx, books, with...); err != nil {
		return nil, err
	}
	c.books = books

	out := cloneBook(b)
	return &out, nil
}

// restock puts one copy of id back on the shelf and writes with alongside.
// A book that no longer exists is skipped and only with is written.
func (c *Catalog) restock(ctx context.Context, id string, with Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return c.store.Set(ctx, with.Key, with.Value)
	}
	books := slices.Clone(c.books)
	books[i].Stock++
	if err := c.persist(ctx, books, with); err != nil {
		return err
	}
	c.books = books
	return nil
}

// ------------------ Queries ------------------

func (c *Catalog) snapshot() []Book {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Book, len(c.books))
	for i, b := range c.books {
		out[i] = cloneBook(b)
	}
	return out
}

// lookup returns a copy of the book, if present.
func (c *Catalog) lookup(id string) (*Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return nil, false
	}
	b := cloneBook(c.books[i])
	return &b, true
}

func (c *Catalog) Get(id string) (*Book, error) {
	b, ok := c.lookup(id)
	if !ok {
		return nil, fail("get book", ErrBookNotFound)
	}
	return b, nil
}

// All returns the catalog in insertion order.
func (c *Catalog) All() []Book { return c.snapshot() }

// Search matches query case-insensitively against title and author.
func (c *Catalog) Search(query string) []Book {
	q := strings.ToLower(query)
	return filterBooks(c.snapshot(), func(b Book) bool { return matchesQuery(b, q) })
}

func matchesQuery(b Book, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(b.Title), lowerQuery) ||
		strings.Contains(strings.ToLower(b.Author), lowerQuery)
}

func (c *Catalog) ByCategory(category string) []Book {
	return filterBooks(c.snapshot(), func(b Book) bool { return b.Category == category })
}

// TopRated returns up to limit books by descending rating; equal ratings
// keep catalog order.
func (c *Catalog) TopRated(limit int) []Book {
	books := c.snapshot()
	slices.SortStableFunc(books, func(a, b Book) int { return cmp.Compare(b.Rating, a.Rating) })
	if limit >= 0 && limit < len(books) {
		books = books[:limit]
	}
	return books
}

// Categories lists distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range c.snapshot() {
		if _, ok := seen[b.Category]; ok {
			continue
		}
		seen[b.Category] = struct{}{}
		out = append(out, b.Category)
	}
	return out
}

func filterBooks(books []Book, keep func(Book) bool) []Book {
	out := make([]Book, 0, len(books))
	for _, b := range books {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
