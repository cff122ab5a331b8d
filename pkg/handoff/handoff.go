// Package handoff tells the collaboration service about matched rooms and
// listens for the sessions it has finished.
//
// Room lifecycle events are published as JSON on the "matches" channel.
// The collaboration service publishes on "session_ended" when a room's
// session is over, either as a JSON object carrying roomId (or matchId) or
// as the bare room id.
package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

// Channel names on the bus.
const (
	MatchesChannel      = "matches"
	SessionEndedChannel = "session_ended"
)

// Event types published on MatchesChannel.
const (
	TypeRoomOpened = "room_opened"
	TypeRoomClosed = "room_closed"
)

// ErrNoRoomID is returned for session_ended messages without a room id.
var ErrNoRoomID = errors.New("handoff: session_ended message carries no room id")

// Event is one message on MatchesChannel.
type Event struct {
	Type       string    `json:"type"`
	RoomID     string    `json:"roomId"`
	Users      []string  `json:"users"`
	Difficulty string    `json:"difficulty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// NewEvent builds the event for rm. reason is empty for TypeRoomOpened.
func NewEvent(typ string, rm model.Room, reason model.CloseReason, at time.Time) Event {
	return Event{
		Type:       typ,
		RoomID:     rm.ID,
		Users:      []string{rm.MemberA.String(), rm.MemberB.String()},
		Difficulty: rm.Difficulty.String(),
		Reason:     string(reason),
		At:         at.UTC(),
	}
}

// ParseSessionEnded extracts the room id from a session_ended payload.
func ParseSessionEnded(payload string) (string, error) {
	p := strings.TrimSpace(payload)
	if p == "" {
		return "", ErrNoRoomID
	}
	if !strings.HasPrefix(p, "{") {
		var s string
		if strings.HasPrefix(p, `"`) {
			if err := json.Unmarshal([]byte(p), &s); err != nil {
				return "", fmt.Errorf("handoff: parse session_ended: %w", err)
			}
			p = strings.TrimSpace(s)
		}
		if p == "" {
			return "", ErrNoRoomID
		}
		return p, nil
	}

	var msg struct {
		RoomID  string `json:"roomId"`
		MatchID string `json:"matchId"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(p)))
	if err := dec.Decode(&msg); err != nil {
		return "", fmt.Errorf("handoff: parse session_ended: %w", err)
	}
	switch {
	case msg.RoomID != "":
		return msg.RoomID, nil
	case msg.MatchID != "":
		return msg.MatchID, nil
	}
	return "", ErrNoRoomID
}

// Nop is the bus used when no broker is configured. Listen blocks until
// the context ends.
type Nop struct{}

func (Nop) RoomOpened(model.Room)                    {}
func (Nop) RoomClosed(model.Room, model.CloseReason) {}

func (Nop) Listen(ctx context.Context, _ func(string)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (Nop) Close() error { return nil }
