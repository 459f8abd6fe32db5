package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/pkg/errors"
)

// ReadBookInputs decodes a JSON array of books as written by an export or by
// hand.
func ReadBookInputs(r io.Reader) ([]BookInput, error) {
	var in []BookInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fail("read books", invalidInput(errors.Wrap(err, "malformed book list").Error()))
	}
	return in, nil
}

// Import adds every input to the catalog in a single write. Nothing is
// imported when any entry is invalid; the error names the first bad entry.
func (c *Catalog) Import(ctx context.Context, inputs []BookInput) ([]Book, error) {
	for i, in := range inputs {
		if err := validateInput(in); err != nil {
			return nil, fail("import books", invalidInput(fmt.Sprintf("entry %d (%q): %s", i+1, in.Title, Message(err))))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := make([]Book, 0, len(inputs))
	for _, in := range inputs {
		added = append(added, Book{
			ID:          c.newID(),
			Title:       in.Title,
			Author:      in.Author,
			Category:    in.Category,
			Price:       in.Price,
			Stock:       in.Stock,
			Image:       in.Image,
			Description: in.Description,
			Reviews:     []Review{},
			CreatedAt:   c.now(),
		})
	}
	books := append(slices.Clip(c.books), added...)
	if err := c.persist(ctx, books); err != nil {
		return nil, fail("import books", err)
	}
	c.books = books

	c.log.Info("books imported", map[string]interface{}{"count": len(added)})
	out := make([]Book, len(added))
	for i, b := range added {
		out[i] = cloneBook(b)
	}
	return out, nil
}
