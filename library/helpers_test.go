package library

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library-catalog/logger"
)

var errDiskFull = errors.New("disk full")

// seqIDs returns an id generator yielding prefix1, prefix2, ...
func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// tickingClock advances one minute per call.
func tickingClock() func() time.Time {
	t := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

// flakyStore fails every write while failing is set.
type flakyStore struct {
	*MemoryStore
	failing bool
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failing {
		return errDiskFull
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *flakyStore) SetMany(ctx context.Context, entries ...Entry) error {
	if s.failing {
		return errDiskFull
	}
	return s.MemoryStore.SetMany(ctx, entries...)
}

var testAdmin = AdminSeed{Email: "admin@library.com", Password: "admin123"}

// newTestLibrary wires a manager over an empty in-memory store with
// deterministic ids and clocks.
func newTestLibrary(t *testing.T, st Store) *LibraryManager {
	t.Helper()
	if st == nil {
		st = NewMemoryStore()
	}
	lm, err := New(context.Background(), st, logger.Nop(), Options{Admin: testAdmin})
	require.NoError(t, err)

	clock := tickingClock()
	lm.Catalog.now, lm.Catalog.newID = clock, seqIDs("b")
	lm.Ledger.now, lm.Ledger.newID = clock, seqIDs("r")
	lm.Reviews.now, lm.Reviews.newID = clock, seqIDs("v")
	lm.Accounts.now, lm.Accounts.newID = clock, seqIDs("u")
	lm.Accounts.hashCost = bcrypt.MinCost
	return lm
}

func addBook(t *testing.T, lm *LibraryManager, title string, stock int) *Book {
	t.Helper()
	b, err := lm.Catalog.Create(context.Background(), BookInput{
		Title:    title,
		Author:   "Author of " + title,
		Category: "Fiction",
		Price:    10,
		Stock:    stock,
	})
	require.NoError(t, err)
	return b
}

func addUser(t *testing.T, lm *LibraryManager, name string) *User {
	t.Helper()
	u, err := lm.Accounts.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return u
}

func login(t *testing.T, lm *LibraryManager, email, password string) *User {
	t.Helper()
	u, err := lm.Login(context.Background(), email, password)
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }
