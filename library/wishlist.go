package library

import (
	"context"
	"slices"

	"library-catalog/logger"
)

// Wishlist owns the wishlist field of each user. Entries are unique and keep
// insertion order.
type Wishlist struct {
	accounts *Accounts
	catalog  *Catalog
	log      logger.Logger
}

func NewWishlist(accounts *Accounts, catalog *Catalog, log logger.Logger) *Wishlist {
	return &Wishlist{
		accounts: accounts,
		catalog:  catalog,
		log:      log.WithFields(map[string]interface{}{"component": "wishlist"}),
	}
}

// Add appends bookID to the user's wishlist. It reports added=false, with no
// write, when the book is already there.
func (w *Wishlist) Add(ctx context.Context, userID, bookID string) (added bool, err error) {
	u, err := w.accounts.Get(userID)
	if err != nil {
		return false, fail("add to wishlist", err)
	}
	if slices.Contains(u.Wishlist, bookID) {
		return false, nil
	}

	_, err = w.accounts.updateUser(ctx, userID, func(u *User) error {
		if slices.Contains(u.Wishlist, bookID) {
			return nil
		}
		added = true
		u.Wishlist = append(u.Wishlist, bookID)
		return nil
	})
	if err != nil {
		return false, fail("add to wishlist", err)
	}
	w.log.Info("wishlist add", map[string]interface{}{"user_id": userID, "book_id": bookID})
	return added, nil
}

// Remove drops bookID from the wishlist. Removing an absent id is not an
// error and still rewrites the collection.
func (w *Wishlist) Remove(ctx context.Context, userID, bookID string) error {
	_, err := w.accounts.updateUser(ctx, userID, func(u *User) error {
		u.Wishlist = slices.DeleteFunc(u.Wishlist, func(id string) bool { return id == bookID })
		if u.Wishlist == nil {
			u.Wishlist = []string{}
		}
		return nil
	})
	if err != nil {
		return fail("remove from wishlist", err)
	}
	w.log.Info("wishlist remove", map[string]interface{}{"user_id": userID, "book_id": bookID})
	return nil
}

// Toggle adds bookID when absent and removes it otherwise. It reports
// whether the book is on the wishlist afterwards.
func (w *Wishlist) Toggle(ctx context.Context, userID, bookID string) (bool, error) {
	ids, err := w.Get(userID)
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, bookID) {
		return false, w.Remove(ctx, userID, bookID)
	}
	return w.Add(ctx, userID, bookID)
}

// Get returns the wishlist ids in insertion order.
func (w *Wishlist) Get(userID string) ([]string, error) {
	u, err := w.accounts.Get(userID)
	if err != nil {
		return nil, fail("get wishlist", err)
	}
	if u.Wishlist == nil {
		return []string{}, nil
	}
	return u.Wishlist, nil
}

// Books resolves the wishlist to catalog entries, skipping ids whose book
// has been deleted.
func (w *Wishlist) Books(userID string) ([]Book, error) {
	ids, err := w.Get(userID)
	if err != nil {
		return nil, err
	}
	out := []Book{}
	for _, id := range ids {
		if b, ok := w.catalog.lookup(id); ok {
			out = append(out, *b)
		}
	}
	return out, nil
}
