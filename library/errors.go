package library

import (
	"github.com/pkg/errors"
)

// Kind classifies failures for callers that render them.
type Kind uint8

const (
	Internal Kind = iota
	NotFound
	OutOfStock
	AlreadyBorrowed
	InvalidRating
	DanglingReference
	InvalidInput
	AlreadyExists
	InvalidCredentials
	Forbidden
	DuplicateReview
)

var kindNames = map[Kind]string{
	Internal:           "Internal",
	NotFound:           "NotFound",
	OutOfStock:         "OutOfStock",
	AlreadyBorrowed:    "AlreadyBorrowed",
	InvalidRating:      "InvalidRating",
	DanglingReference:  "DanglingReference",
	InvalidInput:       "InvalidInput",
	AlreadyExists:      "AlreadyExists",
	InvalidCredentials: "InvalidCredentials",
	Forbidden:          "Forbidden",
	DuplicateReview:    "DuplicateReview",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// kindError is a business-rule failure with a user-facing message.
type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// Is lets per-call validation errors match ErrInvalidInput.
func (e *kindError) Is(target error) bool {
	return target == ErrInvalidInput && e.kind == InvalidInput
}

func invalidInput(msg string) error {
	return &kindError{InvalidInput, msg}
}

var (
	ErrBookNotFound       = &kindError{NotFound, "book not found"}
	ErrRecordNotFound     = &kindError{NotFound, "borrow record not found"}
	ErrReviewNotFound     = &kindError{NotFound, "review not found"}
	ErrUserNotFound       = &kindError{NotFound, "user not found"}
	ErrOutOfStock         = &kindError{OutOfStock, "book not available"}
	ErrAlreadyBorrowed    = &kindError{AlreadyBorrowed, "you have already borrowed this book"}
	ErrInvalidRating      = &kindError{InvalidRating, "rating must be a whole number from 1 to 5"}
	ErrBookUnavailable    = &kindError{DanglingReference, "book is no longer in the catalog"}
	ErrInvalidInput       = &kindError{InvalidInput, "invalid input"}
	ErrEmailTaken         = &kindError{AlreadyExists, "user already exists"}
	ErrInvalidCredentials = &kindError{InvalidCredentials, "invalid email or password"}
	ErrForbidden          = &kindError{Forbidden, "administrator access required"}
	ErrNotLoggedIn        = &kindError{Forbidden, "please log in first"}
	ErrDuplicateReview    = &kindError{DuplicateReview, "you have already reviewed this book"}
)

// Error records the operation that failed alongside the cause.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func fail(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// KindOf returns the kind of the first business-rule error in err's chain.
// Anything else, including storage failures, is Internal.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Internal
}

// Message is the short text shown to users. Internal details never leak.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	return "something went wrong, please try again"
}
