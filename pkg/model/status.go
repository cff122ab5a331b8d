package model

// StatusKind is the derived, never stored, state of a user.
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusQueued
	StatusInRoom
)

func (k StatusKind) String() string {
	switch k {
	case StatusIdle:
		return "idle"
	case StatusQueued:
		return "queued"
	case StatusInRoom:
		return "in_room"
	default:
		return "unknown"
	}
}

// Status is a user's position in the Idle -> Queued -> InRoom -> Idle cycle.
// RoomID is set only for StatusInRoom.
type Status struct {
	Kind   StatusKind
	RoomID string
}

func Idle() Status                { return Status{Kind: StatusIdle} }
func Queued() Status              { return Status{Kind: StatusQueued} }
func InRoom(roomID string) Status { return Status{Kind: StatusInRoom, RoomID: roomID} }

func (s Status) String() string {
	if s.Kind == StatusInRoom {
		return "in_room(" + s.RoomID + ")"
	}
	return s.Kind.String()
}
