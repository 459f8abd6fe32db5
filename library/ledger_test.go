package library

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/logger"
)

func stockOf(t *testing.T, lm *LibraryManager, id string) int {
	t.Helper()
	b, err := lm.Catalog.Get(id)
	require.NoError(t, err)
	return b.Stock
}

func TestBorrowLastCopyThenOutOfStock(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	b := addBook(t, lm, "Solo", 1)

	rec, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)
	assert.False(t, rec.Returned)
	assert.Nil(t, rec.ReturnedAt)
	assert.Equal(t, 0, stockOf(t, lm, b.ID))

	_, err = lm.Ledger.Borrow(ctx, b.ID, "u2")
	require.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, OutOfStock, KindOf(err))
	assert.Equal(t, "book not available", Message(err))
	assert.Equal(t, 0, stockOf(t, lm, b.ID))
}

func TestBorrowTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	b := addBook(t, lm, "Pair", 3)

	_, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)

	_, err = lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.ErrorIs(t, err, ErrAlreadyBorrowed)
	assert.Equal(t, 2, stockOf(t, lm, b.ID))
	assert.Len(t, lm.Ledger.History("u1"), 1)
}

func TestOutOfStockIsCheckedBeforeDuplicate(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	b := addBook(t, lm, "Solo", 1)

	_, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)
	_, err = lm.Ledger.Borrow(ctx, b.ID, "u1")
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestBorrowUnknownBook(t *testing.T) {
	lm := newTestLibrary(t, nil)
	_, err := lm.Ledger.Borrow(context.Background(), "nope", "u1")
	require.ErrorIs(t, err, ErrBookNotFound)
	assert.Equal(t, NotFound, KindOf(err))
	assert.Empty(t, lm.Ledger.AllActive())
}

func TestReturnRestocksAndAllowsNewBorrow(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	b := addBook(t, lm, "Cycle", 1)

	r1, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)

	returned, err := lm.Ledger.Return(ctx, r1.ID)
	require.NoError(t, err)
	assert.True(t, returned.Returned)
	require.NotNil(t, returned.ReturnedAt)
	assert.True(t, returned.ReturnedAt.After(returned.BorrowedAt))
	assert.Equal(t, 1, stockOf(t, lm, b.ID))

	r2, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)

	history := lm.Ledger.History("u1")
	require.Len(t, history, 2)
	assert.Equal(t, r2.ID, history[0].ID)
	assert.True(t, history[1].Returned)
}

func TestReturnTwiceOrUnknownRecord(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	b := addBook(t, lm, "Once", 1)
	r, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)
	_, err = lm.Ledger.Return(ctx, r.ID)
	require.NoError(t, err)

	_, err = lm.Ledger.Return(ctx, r.ID)
	require.ErrorIs(t, err, ErrRecordNotFound)
	_, err = lm.Ledger.Return(ctx, "missing")
	require.ErrorIs(t, err, ErrRecordNotFound)
	assert.Equal(t, 1, stockOf(t, lm, b.ID))
}

func TestReturnAfterBookDeleted(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	b := addBook(t, lm, "Gone", 2)
	r, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)
	require.NoError(t, lm.Catalog.Delete(ctx, b.ID))

	active := lm.Ledger.BorrowedByUser("u1")
	require.Len(t, active, 1)
	assert.Nil(t, active[0].Book)

	got, err := lm.Ledger.Return(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Returned)
	assert.Empty(t, lm.Ledger.BorrowedByUser("u1"))
	assert.Empty(t, lm.Catalog.All())
}

func TestBorrowWriteFailureIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{MemoryStore: NewMemoryStore()}
	lm := newTestLibrary(t, st)
	b := addBook(t, lm, "Fragile", 1)
	beforeBooks, _, _ := st.Get(ctx, KeyBooks)

	st.failing = true
	_, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, "something went wrong, please try again", Message(err))

	assert.Equal(t, 1, stockOf(t, lm, b.ID))
	assert.Empty(t, lm.Ledger.AllActive())
	afterBooks, _, _ := st.Get(ctx, KeyBooks)
	assert.Equal(t, beforeBooks, afterBooks)
	_, ok, _ := st.Get(ctx, KeyBorrows)
	assert.False(t, ok)

	st.failing = false
	_, err = lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)
}

func TestReturnWriteFailureKeepsRecordActive(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{MemoryStore: NewMemoryStore()}
	lm := newTestLibrary(t, st)
	b := addBook(t, lm, "Fragile", 1)
	r, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)

	st.failing = true
	_, err = lm.Ledger.Return(ctx, r.ID)
	require.Error(t, err)
	assert.Equal(t, 0, stockOf(t, lm, b.ID))
	assert.Len(t, lm.Ledger.AllActive(), 1)
}

func TestQueriesJoinBooks(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	a := addBook(t, lm, "A", 2)
	b := addBook(t, lm, "B", 2)

	_, err := lm.Ledger.Borrow(ctx, a.ID, "u1")
	require.NoError(t, err)
	rb, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)
	_, err = lm.Ledger.Borrow(ctx, a.ID, "u2")
	require.NoError(t, err)
	_, err = lm.Ledger.Return(ctx, rb.ID)
	require.NoError(t, err)

	mine := lm.Ledger.BorrowedByUser("u1")
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Book)
	assert.Equal(t, "A", mine[0].Book.Title)

	assert.Len(t, lm.Ledger.AllActive(), 2)
	assert.Equal(t, 2, lm.Ledger.ActiveCount())

	recent := lm.Ledger.RecentActivity(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "u2", recent[0].UserID)
}

func TestLedgerSurvivesReload(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	lm := newTestLibrary(t, st)
	b := addBook(t, lm, "Durable", 2)
	r, err := lm.Ledger.Borrow(ctx, b.ID, "u1")
	require.NoError(t, err)

	reloaded, err := New(ctx, st, logger.Nop(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stockOf(t, reloaded, b.ID))
	_, err = reloaded.Ledger.Borrow(ctx, b.ID, "u1")
	require.ErrorIs(t, err, ErrAlreadyBorrowed)
	_, err = reloaded.Ledger.Return(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stockOf(t, reloaded, b.ID))
}

// TestStockConservation drives random borrow/return traffic and checks that
// stock plus active borrows always equals the initial stock, and that no
// (user, book) pair ever has two active records.
func TestStockConservation(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	rng := rand.New(rand.NewSource(7))

	initial := map[string]int{}
	var bookIDs []string
	for i := 0; i < 4; i++ {
		b := addBook(t, lm, fmt.Sprintf("Book %d", i), i+1)
		initial[b.ID] = b.Stock
		bookIDs = append(bookIDs, b.ID)
	}
	users := []string{"u1", "u2", "u3"}

	for step := 0; step < 500; step++ {
		active := lm.Ledger.AllActive()
		if len(active) > 0 && rng.Intn(2) == 0 {
			_, err := lm.Ledger.Return(ctx, active[rng.Intn(len(active))].ID)
			require.NoError(t, err)
		} else {
			_, err := lm.Ledger.Borrow(ctx, bookIDs[rng.Intn(len(bookIDs))], users[rng.Intn(len(users))])
			if err != nil {
				k := KindOf(err)
				require.True(t, k == OutOfStock || k == AlreadyBorrowed, "unexpected %v", err)
			}
		}

		out := map[string]int{}
		pairs := map[string]int{}
		for _, a := range lm.Ledger.AllActive() {
			out[a.BookID]++
			pairs[a.UserID+"/"+a.BookID]++
		}
		for _, id := range bookIDs {
			stock := stockOf(t, lm, id)
			require.GreaterOrEqual(t, stock, 0)
			require.Equal(t, initial[id], stock+out[id], "step %d book %s", step, id)
		}
		for pair, n := range pairs {
			require.Equal(t, 1, n, "pair %s", pair)
		}
	}
}
