package library

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"library-catalog/logger"
)

const (
	minRating = 1
	maxRating = 5
)

// ReviewInput is one new review. UserName is optional attribution.
type ReviewInput struct {
	BookID   string
	UserID   string
	UserName string
	Rating   int
	Comment  string
}

// Reviews appends and edits book reviews through the catalog and keeps each
// book's Rating equal to the mean of its reviews.
type Reviews struct {
	catalog    *Catalog
	log        logger.Logger
	onePerUser bool

	now   func() time.Time
	newID func() string
}

// NewReviews returns the aggregator. With onePerUser set a second review of
// the same book by the same user is rejected.
func NewReviews(catalog *Catalog, log logger.Logger, onePerUser bool) *Reviews {
	return &Reviews{
		catalog:    catalog,
		log:        log.WithFields(map[string]interface{}{"component": "reviews"}),
		onePerUser: onePerUser,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func validRating(r int) bool { return r >= minRating && r <= maxRating }

// averageRating is the arithmetic mean, or 0 without reviews.
func averageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}

func (rv *Reviews) Add(ctx context.Context, in ReviewInput) (*Review, error) {
	if !validRating(in.Rating) {
		return nil, fail("add review", ErrInvalidRating)
	}

	review := Review{
		ID:        rv.newID(),
		UserID:    in.UserID,
		UserName:  in.UserName,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: rv.now(),
	}
	_, err := rv.catalog.mutate(ctx, in.BookID, func(b *Book) error {
		if rv.onePerUser && slices.ContainsFunc(b.Reviews, func(r Review) bool { return r.UserID == in.UserID }) {
			return ErrDuplicateReview
		}
		b.Reviews = append(b.Reviews, review)
		b.Rating = averageRating(b.Reviews)
		return nil
	})
	if err != nil {
		rv.log.Warn("review rejected", map[string]interface{}{"book_id": in.BookID, "user_id": in.UserID, "error": err.Error()})
		return nil, fail("add review", err)
	}

	rv.log.Info("review added", map[string]interface{}{"book_id": in.BookID, "review_id": review.ID, "rating": review.Rating})
	return &review, nil
}

// Update merges patch into the review and recomputes the book's rating.
func (rv *Reviews) Update(ctx context.Context, bookID, reviewID string, patch ReviewPatch) (*Review, error) {
	if patch.Rating != nil && !validRating(*patch.Rating) {
		return nil, fail("update review", ErrInvalidRating)
	}

	var updated Review
	_, err := rv.catalog.mutate(ctx, bookID, func(b *Book) error {
		i := slices.IndexFunc(b.Reviews, func(r Review) bool { return r.ID == reviewID })
		if i < 0 {
			return ErrReviewNotFound
		}
		if patch.Rating != nil {
			b.Reviews[i].Rating = *patch.Rating
		}
		if patch.Comment != nil {
			b.Reviews[i].Comment = *patch.Comment
		}
		b.Rating = averageRating(b.Reviews)
		updated = b.Reviews[i]
		return nil
	})
	if err != nil {
		return nil, fail("update review", err)
	}

	rv.log.Info("review updated", map[string]interface{}{"book_id": bookID, "review_id": reviewID})
	return &updated, nil
}

// List returns the book's reviews in insertion order.
func (rv *Reviews) List(bookID string) ([]Review, error) {
	b, ok := rv.catalog.lookup(bookID)
	if !ok {
		return nil, fail("list reviews", ErrBookNotFound)
	}
	return b.Reviews, nil
}
