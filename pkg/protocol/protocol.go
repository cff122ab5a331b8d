// Package protocol defines the event envelope spoken on the /match channel.
//
// Every frame is a JSON object {"event": name, "data": payload}. Inbound data
// may be an object or a JSON-encoded string holding the object, since
// browser clients commonly stringify payloads before emitting them.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/NicolasHaas/peermatch/pkg/model"
	pb "github.com/NicolasHaas/peermatch/pkg/protocol/pb"
)

// MaxMessageSize is the largest inbound frame accepted (16KB).
const MaxMessageSize = 16 << 10

// Namespace is the HTTP path the match channel is served on.
const Namespace = "/match"

// Inbound event names.
const (
	EventJoinQueue  = "join-queue"
	EventLeaveQueue = "leave-queue"
	EventPing       = "ping"
)

// Outbound event names.
const (
	EventJoinQueueSuccess  = "join-queue-success"
	EventJoinQueueError    = "join-queue-error"
	EventMatchFound        = "match-found"
	EventRoomExists        = "room-exists"
	EventLeaveQueueSuccess = "leave-queue-success"
	EventLeaveQueueError   = "leave-queue-error"
	EventPeerDisconnected  = "peer-disconnected"
	EventRoomClosed        = "room-closed"
	EventError             = "error"
	EventPong              = "pong"
)

// Envelope is a single frame on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a notification produced by the coordinator for delivery to
// one user's connection.
type Outbound struct {
	To      model.UserID
	Event   string
	Payload any
}

// To builds an Outbound for one recipient.
func To(u model.UserID, event string, payload any) Outbound {
	return Outbound{To: u, Event: event, Payload: payload}
}

// Encode marshals an event into a frame.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal envelope: %w", err)
	}
	return frame, nil
}

// Decode parses a frame. It does not look at the payload.
func Decode(frame []byte) (Envelope, error) {
	if len(frame) > MaxMessageSize {
		return Envelope{}, fmt.Errorf("protocol: message too large: %d bytes: %w", len(frame), model.ErrInvalidRequest)
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: unmarshal: %v: %w", err, model.ErrInvalidRequest)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("protocol: missing event name: %w", model.ErrInvalidRequest)
	}
	return env, nil
}

// DecodeData unmarshals the payload of env into v. A missing or null
// payload leaves v untouched.
func DecodeData(env Envelope, v any) error {
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("protocol: %s payload: %v: %w", env.Event, err, model.ErrInvalidRequest)
		}
		data = []byte(s)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("protocol: %s payload: %v: %w", env.Event, err, model.ErrInvalidRequest)
	}
	return nil
}

// DecodeJoin parses a join-queue payload into the claimed user id and a
// validated difficulty set.
func DecodeJoin(env Envelope) (model.UserID, model.DifficultySet, error) {
	var req pb.JoinQueueRequest
	if err := DecodeData(env, &req); err != nil {
		return "", 0, err
	}
	set, err := model.ParseDifficulties(req.Difficulties)
	if err != nil {
		return "", 0, err
	}
	return req.Subject(), set, nil
}

// DecodeLeave parses a leave-queue payload into the claimed user id.
func DecodeLeave(env Envelope) (model.UserID, error) {
	var req pb.LeaveQueueRequest
	if err := DecodeData(env, &req); err != nil {
		return "", err
	}
	return req.Subject(), nil
}
