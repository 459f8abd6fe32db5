package library

import (
	"slices"
	"time"
)

// Book is one catalog title. Stock counts copies on the shelf; Rating is the
// mean of Reviews and is never written directly by callers.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Image       string    `json:"image"`
	Description string    `json:"description"`
	Rating      float64   `json:"rating"`
	Reviews     []Review  `json:"reviews"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Review is owned by exactly one Book.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// BorrowRecord is both live state and history: records are never removed.
type BorrowRecord struct {
	ID         string     `json:"id"`
	BookID     string     `json:"bookId"`
	UserID     string     `json:"userId"`
	BorrowedAt time.Time  `json:"borrowedAt"`
	Returned   bool       `json:"returned"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty"`
}

// Active reports whether the copy is still out.
func (r BorrowRecord) Active() bool { return !r.Returned }

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is a registered account. BorrowedBooks is derived from the ledger
// (ids of active records) and only populated on the session snapshot.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"passwordHash,omitempty"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
	Wishlist      []string  `json:"wishlist"`
	BorrowedBooks []string  `json:"borrowedBooks,omitempty"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// ActiveBorrow is a borrow record joined with its book. Book is nil when the
// book has been deleted since the record was created.
type ActiveBorrow struct {
	BorrowRecord
	Book *Book `json:"book"`
}

// BookInput holds the admin-supplied fields of a new book.
type BookInput struct {
	Title       string  `json:"title" validate:"required"`
	Author      string  `json:"author" validate:"required"`
	Category    string  `json:"category"`
	Price       float64 `json:"price" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	Image       string  `json:"image"`
	Description string  `json:"description"`
}

// BookPatch is a shallow partial update; nil fields are left untouched.
type BookPatch struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,min=1"`
	Author      *string  `json:"author,omitempty" validate:"omitempty,min=1"`
	Category    *string  `json:"category,omitempty"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Stock       *int     `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Image       *string  `json:"image,omitempty"`
	Description *string  `json:"description,omitempty"`
}

func (p BookPatch) apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.Price != nil {
		b.Price = *p.Price
	}
	if p.Stock != nil {
		b.Stock = *p.Stock
	}
	if p.Image != nil {
		b.Image = *p.Image
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
}

// ReviewPatch is a partial update of a review.
type ReviewPatch struct {
	Rating  *int    `json:"rating,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// RegisterInput is the payload of Accounts.Register.
type RegisterInput struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	Role     Role   `validate:"omitempty,oneof=admin user"`
}

// ProfilePatch updates the editable profile fields.
type ProfilePatch struct {
	Name  *string `validate:"omitempty,min=1"`
	Email *string `validate:"omitempty,email"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalBooks    int `json:"totalBooks"`
	TotalUsers    int `json:"totalUsers"`
	ActiveBorrows int `json:"borrowedBooks"`
	OutOfStock    int `json:"outOfStock"`
}

// cloneBook and cloneUser copy the slice fields. An empty slice stays empty
// rather than nil so snapshots keep encoding it as [].
func cloneBook(b Book) Book {
	b.Reviews = slices.Clone(b.Reviews)
	return b
}

func cloneUser(u User) User {
	u.Wishlist = slices.Clone(u.Wishlist)
	u.BorrowedBooks = slices.Clone(u.BorrowedBooks)
	return u
}
