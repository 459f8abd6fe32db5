package library

import (
	"cmp"
	"slices"
	"strings"
)

type Availability string

const (
	AvailabilityAll        Availability = "all"
	AvailabilityAvailable  Availability = "available"
	AvailabilityOutOfStock Availability = "outOfStock"
)

type SortBy string

const (
	SortNone       SortBy = ""
	SortTitle      SortBy = "title"
	SortTitleDesc  SortBy = "titleDesc"
	SortPrice      SortBy = "price"
	SortPriceDesc  SortBy = "priceDesc"
	SortRating     SortBy = "rating"
	SortRatingDesc SortBy = "ratingDesc"
)

// Filter narrows the catalog for display. Zero values match everything;
// MaxPrice <= 0 means no upper bound.
type Filter struct {
	Search       string
	Category     string
	MinPrice     float64
	MaxPrice     float64
	Availability Availability
}

func (f Filter) match(b Book) bool {
	if f.Search != "" && !matchesQuery(b, strings.ToLower(f.Search)) {
		return false
	}
	if f.Category != "" && b.Category != f.Category {
		return false
	}
	if b.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && b.Price > f.MaxPrice {
		return false
	}
	switch f.Availability {
	case AvailabilityAvailable:
		return b.Stock > 0
	case AvailabilityOutOfStock:
		return b.Stock == 0
	}
	return true
}

// Browse filters the catalog and orders the result by sortBy. The sort is
// stable, so ties keep catalog order.
func (c *Catalog) Browse(f Filter, sortBy SortBy) []Book {
	books := filterBooks(c.snapshot(), f.match)

	var less func(a, b Book) int
	switch sortBy {
	case SortTitle:
		less = func(a, b Book) int { return compareTitle(a, b) }
	case SortTitleDesc:
		less = func(a, b Book) int { return compareTitle(b, a) }
	case SortPrice:
		less = func(a, b Book) int { return cmp.Compare(a.Price, b.Price) }
	case SortPriceDesc:
		less = func(a, b Book) int { return cmp.Compare(b.Price, a.Price) }
	case SortRating:
		less = func(a, b Book) int { return cmp.Compare(a.Rating, b.Rating) }
	case SortRatingDesc:
		less = func(a, b Book) int { return cmp.Compare(b.Rating, a.Rating) }
	default:
		return books
	}
	slices.SortStableFunc(books, less)
	return books
}

func compareTitle(a, b Book) int {
	return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
}
