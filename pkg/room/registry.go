// Package room tracks the active paired sessions.
package room

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

// DefaultClosedHistory is how many closed rooms are remembered so that late
// close requests for them stay no-ops rather than NotFound.
const DefaultClosedHistory = 1024

// Registry maps room ids to rooms and users to their active room. Like
// queue.Pool it is not safe for concurrent use on its own.
type Registry struct {
	now     func() time.Time
	newID   func() string
	rooms   map[string]*model.Room
	byUser  map[model.UserID]string // active memberships only
	closed  []string                // closed room ids, oldest first
	history int
}

// Options configures a Registry. Zero values select the defaults.
type Options struct {
	Now           func() time.Time
	NewID         func() string
	ClosedHistory int
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.ClosedHistory <= 0 {
		opts.ClosedHistory = DefaultClosedHistory
	}
	return &Registry{
		now:     opts.Now,
		newID:   opts.NewID,
		rooms:   make(map[string]*model.Room),
		byUser:  make(map[model.UserID]string),
		history: opts.ClosedHistory,
	}
}

// Create allocates an active room for a and b.
func (r *Registry) Create(a, b model.UserID, d model.Difficulty) (model.Room, error) {
	if a == b {
		return model.Room{}, fmt.Errorf("room: create %s: %w", a, model.ErrSameMember)
	}
	for _, u := range []model.UserID{a, b} {
		if id, ok := r.byUser[u]; ok {
			return model.Room{}, fmt.Errorf("room: create: %s: %w", u, &model.RoomExistsError{RoomID: id})
		}
	}

	id := r.newID()
	for _, taken := r.rooms[id]; taken; _, taken = r.rooms[id] {
		id = r.newID()
	}

	rm := &model.Room{
		ID:         id,
		MemberA:    a,
		MemberB:    b,
		Difficulty: d,
		CreatedAt:  r.now(),
		State:      model.RoomActive,
	}
	r.rooms[id] = rm
	r.byUser[a] = id
	r.byUser[b] = id
	return *rm, nil
}

// LookupByUser returns the active room containing u.
func (r *Registry) LookupByUser(u model.UserID) (model.Room, bool) {
	id, ok := r.byUser[u]
	if !ok {
		return model.Room{}, false
	}
	return *r.rooms[id], true
}

// Get returns a room in any state.
func (r *Registry) Get(id string) (model.Room, error) {
	rm, ok := r.rooms[id]
	if !ok {
		return model.Room{}, fmt.Errorf("room: %s: %w", id, model.ErrNotFound)
	}
	return *rm, nil
}

// Close marks the room closed and releases both memberships. Closing an
// already closed room is a no-op; changed reports whether this call closed
// it.
func (r *Registry) Close(id string) (rm model.Room, changed bool, err error) {
	p, ok := r.rooms[id]
	if !ok {
		return model.Room{}, false, fmt.Errorf("room: close %s: %w", id, model.ErrNotFound)
	}
	if p.State == model.RoomClosed {
		return *p, false, nil
	}

	p.State = model.RoomClosed
	p.ClosedAt = r.now()
	for _, u := range p.Members() {
		if r.byUser[u] == id {
			delete(r.byUser, u)
		}
	}

	r.closed = append(r.closed, id)
	if len(r.closed) > r.history {
		evict := r.closed[0]
		r.closed = r.closed[1:]
		delete(r.rooms, evict)
	}
	return *p, true, nil
}

// Active returns a snapshot of all active rooms, oldest first.
func (r *Registry) Active() []model.Room {
	out := make([]model.Room, 0, len(r.byUser)/2)
	for _, rm := range r.rooms {
		if rm.State == model.RoomActive {
			out = append(out, *rm)
		}
	}
	slices.SortFunc(out, func(a, b model.Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of active rooms.
func (r *Registry) Len() int { return len(r.byUser) / 2 }
