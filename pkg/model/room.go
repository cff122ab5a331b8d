package model

import (
	"fmt"
	"time"
)

// RoomState is the lifecycle state of a room.
type RoomState int

const (
	RoomActive RoomState = iota
	RoomClosed
)

func (s RoomState) String() string {
	switch s {
	case RoomActive:
		return "active"
	case RoomClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s RoomState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *RoomState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "active":
		*s = RoomActive
	case "closed":
		*s = RoomClosed
	default:
		return fmt.Errorf("unknown room state %q: %w", b, ErrInvalidRequest)
	}
	return nil
}

// Room is an exclusive two-party session created by a successful match.
type Room struct {
	ID         string     `json:"room_id" yaml:"room_id"`
	MemberA    UserID     `json:"member_a" yaml:"member_a"`
	MemberB    UserID     `json:"member_b" yaml:"member_b"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	ClosedAt   time.Time  `json:"closed_at,omitzero" yaml:"closed_at,omitempty"`
	State      RoomState  `json:"state" yaml:"state"`
}

// Has reports whether u is one of the two members.
func (r Room) Has(u UserID) bool {
	return r.MemberA == u || r.MemberB == u
}

// Peer returns the other member. ok is false when u is not a member.
func (r Room) Peer(u UserID) (peer UserID, ok bool) {
	switch u {
	case r.MemberA:
		return r.MemberB, true
	case r.MemberB:
		return r.MemberA, true
	default:
		return "", false
	}
}

// Members returns both members, A first.
func (r Room) Members() []UserID {
	return []UserID{r.MemberA, r.MemberB}
}

// CloseReason describes why a room was closed.
type CloseReason string

const (
	CloseDisconnect CloseReason = "peer_disconnected"
	CloseCompleted  CloseReason = "session_ended"
	CloseAdmin      CloseReason = "closed_by_admin"
)
