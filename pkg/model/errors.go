package model

import "errors"

// Validation errors: the request is malformed and never touches shared state.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidCriteria  = errors.New("difficulties must be a non-empty list of easy, medium or hard")
	ErrSameMember       = errors.New("a room needs two distinct members")
	ErrIdentityMismatch = errors.New("user id does not match the connected user")
)

// State conflicts: the request contradicts the user's current status.
var (
	ErrAlreadyQueued = errors.New("user is already in the queue")
	ErrNotQueued     = errors.New("user is not in the queue")
	ErrAlreadyInRoom = errors.New("user is already in a room")
)

// ErrNotFound is returned for operations on an unknown room or user.
var ErrNotFound = errors.New("not found")

// RoomExistsError rejects a join from a user who is already in a room. It
// carries the room id so the client can offer to rejoin it.
type RoomExistsError struct {
	RoomID string
}

func (e *RoomExistsError) Error() string {
	return "user is already in room " + e.RoomID
}

// Is makes errors.Is(err, ErrAlreadyInRoom) hold for a RoomExistsError.
func (e *RoomExistsError) Is(target error) bool {
	return target == ErrAlreadyInRoom
}

// ErrorKind classifies errors returned by the matching core.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindStateConflict
	KindRoomExists
	KindNotFound
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindRoomExists:
		return "room_exists"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var validationErrs = []error{
	ErrInvalidRequest, ErrInvalidCriteria, ErrSameMember, ErrIdentityMismatch,
	ErrUserIDEmpty, ErrUserIDTooLong, ErrUserIDInvalidChars,
}

// KindOf classifies err. Unrecognised errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var re *RoomExistsError
	if errors.As(err, &re) {
		return KindRoomExists
	}
	for _, v := range validationErrs {
		if errors.Is(err, v) {
			return KindValidation
		}
	}
	switch {
	case errors.Is(err, ErrAlreadyQueued), errors.Is(err, ErrNotQueued), errors.Is(err, ErrAlreadyInRoom):
		return KindStateConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindInternal
}
