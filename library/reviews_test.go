package library

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/logger"
)

func ratingOf(t *testing.T, lm *LibraryManager, id string) float64 {
	t.Helper()
	b, err := lm.Catalog.Get(id)
	require.NoError(t, err)
	return b.Rating
}

func TestAddReviewRecomputesMean(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	b := addBook(t, lm, "Rated", 1)

	r, err := lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u1", Rating: 5, Comment: "great"})
	require.NoError(t, err)
	assert.Equal(t, "great", r.Comment)
	assert.InDelta(t, 5.0, ratingOf(t, lm, b.ID), 1e-9)

	_, err = lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u2", Rating: 3, Comment: "ok"})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, ratingOf(t, lm, b.ID), 1e-9)

	reviews, err := lm.Reviews.List(b.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "u1", reviews[0].UserID)
	assert.Equal(t, "u2", reviews[1].UserID)
}

func TestAddReviewRejectsOutOfRangeRating(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	lm := newTestLibrary(t, st)
	b := addBook(t, lm, "Rated", 1)
	before, _, _ := st.Get(ctx, KeyBooks)

	for _, rating := range []int{0, 6, -1} {
		_, err := lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u1", Rating: rating})
		require.ErrorIs(t, err, ErrInvalidRating)
		assert.Equal(t, InvalidRating, KindOf(err))
	}

	after, _, _ := st.Get(ctx, KeyBooks)
	assert.Equal(t, before, after)
	assert.Zero(t, ratingOf(t, lm, b.ID))
}

func TestAddReviewUnknownBook(t *testing.T) {
	lm := newTestLibrary(t, nil)
	_, err := lm.Reviews.Add(context.Background(), ReviewInput{BookID: "nope", UserID: "u1", Rating: 4})
	require.ErrorIs(t, err, ErrBookNotFound)
}

func TestDuplicateReviewsArePermittedByDefault(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	b := addBook(t, lm, "Again", 1)

	_, err := lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u1", Rating: 2})
	require.NoError(t, err)
	_, err = lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u1", Rating: 4})
	require.NoError(t, err)

	assert.InDelta(t, 3.0, ratingOf(t, lm, b.ID), 1e-9)
}

func TestOneReviewPerUserWhenEnabled(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	lm, err := New(ctx, st, logger.Nop(), Options{OneReviewPerUser: true})
	require.NoError(t, err)
	b, err := lm.Catalog.Create(ctx, BookInput{Title: "Strict", Author: "x"})
	require.NoError(t, err)

	_, err = lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u1", Rating: 2})
	require.NoError(t, err)
	_, err = lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u1", Rating: 5})
	require.ErrorIs(t, err, ErrDuplicateReview)
	_, err = lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u2", Rating: 5})
	require.NoError(t, err)

	assert.InDelta(t, 3.5, ratingOf(t, lm, b.ID), 1e-9)
}

func TestUpdateReview(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	b := addBook(t, lm, "Edit", 1)
	r1, err := lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u1", Rating: 1, Comment: "meh"})
	require.NoError(t, err)
	_, err = lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u2", Rating: 3})
	require.NoError(t, err)

	got, err := lm.Reviews.Update(ctx, b.ID, r1.ID, ReviewPatch{Rating: ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, got.Rating)
	assert.Equal(t, "meh", got.Comment)
	assert.InDelta(t, 4.0, ratingOf(t, lm, b.ID), 1e-9)

	got, err = lm.Reviews.Update(ctx, b.ID, r1.ID, ReviewPatch{Comment: ptr("changed my mind")})
	require.NoError(t, err)
	assert.Equal(t, "changed my mind", got.Comment)
	assert.InDelta(t, 4.0, ratingOf(t, lm, b.ID), 1e-9)

	_, err = lm.Reviews.Update(ctx, b.ID, r1.ID, ReviewPatch{Rating: ptr(9)})
	require.ErrorIs(t, err, ErrInvalidRating)
	_, err = lm.Reviews.Update(ctx, b.ID, "missing", ReviewPatch{Rating: ptr(2)})
	require.ErrorIs(t, err, ErrReviewNotFound)
	_, err = lm.Reviews.Update(ctx, "missing", r1.ID, ReviewPatch{Rating: ptr(2)})
	require.ErrorIs(t, err, ErrBookNotFound)
	assert.InDelta(t, 4.0, ratingOf(t, lm, b.ID), 1e-9)
}

func TestRatingAlwaysEqualsMean(t *testing.T) {
	ctx := context.Background()
	lm := newTestLibrary(t, nil)
	b := addBook(t, lm, "Mean", 1)
	rng := rand.New(rand.NewSource(3))

	var ids []string
	for step := 0; step < 200; step++ {
		if len(ids) > 0 && rng.Intn(3) == 0 {
			_, err := lm.Reviews.Update(ctx, b.ID, ids[rng.Intn(len(ids))], ReviewPatch{Rating: ptr(1 + rng.Intn(5))})
			require.NoError(t, err)
		} else {
			r, err := lm.Reviews.Add(ctx, ReviewInput{BookID: b.ID, UserID: "u", Rating: 1 + rng.Intn(5)})
			require.NoError(t, err)
			ids = append(ids, r.ID)
		}

		got, err := lm.Catalog.Get(b.ID)
		require.NoError(t, err)
		sum := 0
		for _, r := range got.Reviews {
			sum += r.Rating
		}
		require.InDelta(t, float64(sum)/float64(len(got.Reviews)), got.Rating, 1e-9)
	}
}

func TestAverageRatingEmpty(t *testing.T) {
	assert.Zero(t, averageRating(nil))
}
