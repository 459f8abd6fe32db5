package library

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sentinel", ErrOutOfStock, OutOfStock},
		{"wrapped by op", fail("borrow", ErrAlreadyBorrowed), AlreadyBorrowed},
		{"wrapped twice", errors.Wrap(fail("return", ErrRecordNotFound), "cli"), NotFound},
		{"validation", invalidInput("title is required"), InvalidInput},
		{"storage", fail("borrow", errDiskFull), Internal},
		{"nil", nil, Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "book not found", Message(fail("get book", ErrBookNotFound)))
	assert.Equal(t, "something went wrong, please try again", Message(fail("borrow", errDiskFull)))
	assert.Equal(t, "borrow: disk full", fail("borrow", errDiskFull).Error())
}

func TestInvalidInputMatchesSentinel(t *testing.T) {
	err := fail("create book", invalidInput("price must not be negative"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrInvalidRating)
	assert.Equal(t, "price must not be negative", Message(err))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "DanglingReference", DanglingReference.String())
	assert.Equal(t, "Unknown", Kind(200).String())
}
