package model

import (
	"errors"
	"fmt"
	"unicode"
)

const MaxUserIDLength = 128

var ErrUserIDEmpty = errors.New("user id must not be empty")
var ErrUserIDTooLong = fmt.Errorf("user id must not exceed %d characters", MaxUserIDLength)
var ErrUserIDInvalidChars = errors.New("user id must not contain whitespace or control characters")

// UserID is the opaque identifier supplied by the identity provider.
type UserID string

func (u UserID) String() string { return string(u) }

// ValidateUserID checks that an id is 1-128 printable, non-space characters.
func ValidateUserID(id UserID) error {
	if len(id) == 0 {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLength {
		return ErrUserIDTooLong
	}
	for _, r := range string(id) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrUserIDInvalidChars
		}
	}
	return nil
}
