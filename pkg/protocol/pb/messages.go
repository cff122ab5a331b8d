// Package pb holds the payload types carried in protocol envelopes.
package pb

import "github.com/NicolasHaas/peermatch/pkg/model"

// ----- Inbound -----

// JoinQueueRequest is the join-queue payload. Clients send either userId or
// the id field of their user object.
type JoinQueueRequest struct {
	UserID       string   `json:"userId,omitempty"`
	ID           string   `json:"id,omitempty"`
	Difficulties []string `json:"difficulties"`
}

// Subject returns the user id the request claims to act for.
func (r JoinQueueRequest) Subject() model.UserID {
	if r.UserID != "" {
		return model.UserID(r.UserID)
	}
	return model.UserID(r.ID)
}

// LeaveQueueRequest is the leave-queue payload.
type LeaveQueueRequest struct {
	UserID string `json:"userId,omitempty"`
	ID     string `json:"id,omitempty"`
}

func (r LeaveQueueRequest) Subject() model.UserID {
	if r.UserID != "" {
		return model.UserID(r.UserID)
	}
	return model.UserID(r.ID)
}

type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

// ----- Outbound -----

// Message carries a human readable status. Used by join-queue-success,
// join-queue-error, leave-queue-success, leave-queue-error and error.
type Message struct {
	Message string `json:"message"`
}

type MatchFound struct {
	Message       string `json:"message"`
	MatchedRoomID string `json:"matchedRoomId"`
	Difficulty    string `json:"difficulty"`
	Peer          string `json:"peerId"`
	Ticket        string `json:"ticket,omitempty"` // proves membership to the session service
}

type RoomExists struct {
	Message        string `json:"message"`
	ExistingRoomID string `json:"existingRoomId"`
}

// RoomClosed is sent by room-closed and peer-disconnected.
type RoomClosed struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
	Reason  string `json:"reason"`
}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}
