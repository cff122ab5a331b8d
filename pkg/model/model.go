// Package model defines the core domain types for peermatch.
package model

import "time"

// QueueEntry is a user waiting for a partner. It exists only while the user
// is queued.
type QueueEntry struct {
	UserID       UserID        `json:"user_id"`
	Difficulties DifficultySet `json:"difficulties"`
	EnqueuedAt   time.Time     `json:"enqueued_at"`
	Seq          uint64        `json:"-"` // arrival order tiebreak for equal timestamps
}

// Before reports whether e arrived before o.
func (e QueueEntry) Before(o QueueEntry) bool {
	if !e.EnqueuedAt.Equal(o.EnqueuedAt) {
		return e.EnqueuedAt.Before(o.EnqueuedAt)
	}
	return e.Seq < o.Seq
}
