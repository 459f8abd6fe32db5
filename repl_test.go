package main

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/config"
	"library-catalog/library"
	"library-catalog/logger"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	mgr, err := library.New(context.Background(), library.NewMemoryStore(), logger.Nop(), library.Options{
		SeedSamples: true,
		Admin:       library.AdminSeed{Email: "admin@library.com", Password: "admin123"},
	})
	require.NoError(t, err)

	orig := readPassword
	readPassword = func(sc *bufio.Scanner, _ string) (string, error) {
		sc.Scan()
		return strings.TrimSpace(sc.Text()), nil
	}
	t.Cleanup(func() { readPassword = orig })

	return &app{
		cfg: &config.Config{Catalog: config.CatalogConfig{TopRatedLimit: 5, RecentActivityLimit: 8}},
		log: logger.Nop(),
		mgr: mgr,
	}
}

func TestREPLRegisterLoginBorrow(t *testing.T) {
	a := newTestApp(t)
	script := strings.Join([]string{
		"register", "Ana", "ana@example.com", "secret123",
		"login", "ana@example.com", "secret123",
		"borrow", "1",
		"toggle wishlist", "2",
		"review", "2", "5", "great",
		"exit",
	}, "\n")

	runREPL(context.Background(), a, strings.NewReader(script))

	u := a.mgr.Accounts.CurrentUser()
	require.NotNil(t, u)
	assert.Equal(t, "Ana", u.Name)
	assert.Len(t, u.BorrowedBooks, 1)
	assert.Equal(t, []string{"2"}, u.Wishlist)

	b, err := a.mgr.Catalog.Get("1")
	require.NoError(t, err)
	assert.Equal(t, 4, b.Stock)

	b, err = a.mgr.Catalog.Get("2")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, b.Rating, 1e-9)
}

func TestREPLAdminAddBookRequiresAdmin(t *testing.T) {
	a := newTestApp(t)
	script := strings.Join([]string{
		"add book", "Dune", "Frank Herbert", "Sci-Fi", "12", "2", "",
		"login", "admin@library.com", "admin123",
		"add book", "Dune", "Frank Herbert", "Sci-Fi", "12", "2", "",
		"exit",
	}, "\n")

	runREPL(context.Background(), a, strings.NewReader(script))

	found := a.mgr.Catalog.Search("dune")
	require.Len(t, found, 1)
	assert.Equal(t, 2, found[0].Stock)
}

func TestREPLStopsOnCancelledContext(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runREPL(ctx, a, strings.NewReader("borrow\n1\n"))

	b, err := a.mgr.Catalog.Get("1")
	require.NoError(t, err)
	assert.Equal(t, 5, b.Stock)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "a long ...", truncateString("a long title here", 10))
}
