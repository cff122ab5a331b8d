// Package match implements the coordinator that owns the waiting pool and
// the room registry.
//
// Every operation that touches the pool or the registry runs under one
// mutex, held from the enqueue through the match attempt and room creation.
// Nothing inside the critical section performs I/O: operations return the
// notifications to send as protocol.Outbound values, and room lifecycle
// hooks run after the lock is released.
package match

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NicolasHaas/peermatch/pkg/crypto"
	"github.com/NicolasHaas/peermatch/pkg/model"
	"github.com/NicolasHaas/peermatch/pkg/protocol"
	pb "github.com/NicolasHaas/peermatch/pkg/protocol/pb"
	"github.com/NicolasHaas/peermatch/pkg/queue"
	"github.com/NicolasHaas/peermatch/pkg/room"
)

// Observer is told about rooms being opened and closed, e.g. to hand them
// off to the session service. Calls happen outside the coordinator lock
// and must not block for long.
type Observer interface {
	RoomOpened(rm model.Room)
	RoomClosed(rm model.Room, reason model.CloseReason)
}

type nopObserver struct{}

func (nopObserver) RoomOpened(model.Room)                    {}
func (nopObserver) RoomClosed(model.Room, model.CloseReason) {}

// Options configures a Coordinator. Zero values select the defaults.
type Options struct {
	Now           func() time.Time
	NewRoomID     func() string
	ClosedHistory int
	Tickets       *crypto.Ticketer
	Observer      Observer
	Logger        *slog.Logger
}

// Coordinator serialises join, leave, disconnect and close operations.
type Coordinator struct {
	mu    sync.Mutex
	pool  *queue.Pool
	rooms *room.Registry
	seq   uint64

	now      func() time.Time
	tickets  *crypto.Ticketer
	observer Observer
	log      *slog.Logger
}

// New creates a coordinator with an empty pool and registry.
func New(opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		pool: queue.NewPool(),
		rooms: room.NewRegistry(room.Options{
			Now:           opts.Now,
			NewID:         opts.NewRoomID,
			ClosedHistory: opts.ClosedHistory,
		}),
		now:      opts.Now,
		tickets:  opts.Tickets,
		observer: opts.Observer,
		log:      opts.Logger,
	}
}

// Join queues u with the given difficulties and immediately tries to match.
// A user in a room gets a *model.RoomExistsError, a queued user
// model.ErrAlreadyQueued.
func (c *Coordinator) Join(u model.UserID, set model.DifficultySet) ([]protocol.Outbound, error) {
	if err := model.ValidateUserID(u); err != nil {
		return nil, fmt.Errorf("match: join: %w", err)
	}
	if set.Empty() {
		return nil, fmt.Errorf("match: join %s: %w", u, model.ErrInvalidCriteria)
	}

	out, opened, err := c.join(u, set)
	if err != nil {
		return nil, err
	}
	if opened != nil {
		c.log.Info("match found",
			"room", opened.ID, "a", opened.MemberA, "b", opened.MemberB, "difficulty", opened.Difficulty)
		c.observer.RoomOpened(*opened)
	} else {
		c.log.Debug("user queued", "user", u, "difficulties", set)
	}
	return out, nil
}

func (c *Coordinator) join(u model.UserID, set model.DifficultySet) ([]protocol.Outbound, *model.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rm, ok := c.rooms.LookupByUser(u); ok {
		return nil, nil, &model.RoomExistsError{RoomID: rm.ID}
	}

	c.seq++
	entry := model.QueueEntry{
		UserID:       u,
		Difficulties: set,
		EnqueuedAt:   c.now(),
		Seq:          c.seq,
	}
	if err := c.pool.Enqueue(entry); err != nil {
		return nil, nil, fmt.Errorf("match: join: %w", err)
	}

	pair, ok := queue.AttemptMatch(c.pool, entry)
	if !ok {
		return []protocol.Outbound{
			protocol.To(u, protocol.EventJoinQueueSuccess, pb.Message{
				Message: "joined queue for " + set.String() + ", waiting for a match",
			}),
		}, nil, nil
	}

	rm, err := c.rooms.Create(pair.First.UserID, pair.Second.UserID, pair.Difficulty)
	if err != nil {
		// Put both back where they were so no one loses their place.
		_ = c.pool.Enqueue(pair.First)
		_ = c.pool.Enqueue(pair.Second)
		return nil, nil, fmt.Errorf("match: create room: %w", err)
	}

	return []protocol.Outbound{
		protocol.To(rm.MemberA, protocol.EventMatchFound, c.matchFound(rm, rm.MemberA)),
		protocol.To(rm.MemberB, protocol.EventMatchFound, c.matchFound(rm, rm.MemberB)),
	}, &rm, nil
}

func (c *Coordinator) matchFound(rm model.Room, u model.UserID) pb.MatchFound {
	peer, _ := rm.Peer(u)
	return pb.MatchFound{
		Message:       "match found",
		MatchedRoomID: rm.ID,
		Difficulty:    rm.Difficulty.String(),
		Peer:          peer.String(),
		Ticket:        c.tickets.Issue(rm.ID, u.String()),
	}
}

// Leave removes u from the queue. It fails with model.ErrNotQueued if u is
// not waiting.
func (c *Coordinator) Leave(u model.UserID) ([]protocol.Outbound, error) {
	if err := model.ValidateUserID(u); err != nil {
		return nil, fmt.Errorf("match: leave: %w", err)
	}

	c.mu.Lock()
	_, err := c.pool.Dequeue(u)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("match: leave: %w", err)
	}

	c.log.Debug("user left queue", "user", u)
	return []protocol.Outbound{
		protocol.To(u, protocol.EventLeaveQueueSuccess, pb.Message{Message: "left queue"}),
	}, nil
}

// Disconnect releases everything u holds: a queue entry is dropped
// silently, a room is closed and the peer told. It returns the status u had
// before the call.
func (c *Coordinator) Disconnect(u model.UserID) (model.Status, []protocol.Outbound) {
	c.mu.Lock()
	if _, err := c.pool.Dequeue(u); err == nil {
		c.mu.Unlock()
		c.log.Debug("dropped queue entry of disconnected user", "user", u)
		return model.Queued(), nil
	}
	rm, ok := c.rooms.LookupByUser(u)
	if !ok {
		c.mu.Unlock()
		return model.Idle(), nil
	}
	closed, _, err := c.rooms.Close(rm.ID)
	c.mu.Unlock()
	if err != nil {
		// The room was just looked up under the same lock.
		c.log.Error("close room on disconnect", "room", rm.ID, "user", u, "err", err)
		return model.InRoom(rm.ID), nil
	}

	c.log.Info("room closed, member disconnected", "room", closed.ID, "user", u)
	c.observer.RoomClosed(closed, model.CloseDisconnect)

	peer, _ := closed.Peer(u)
	return model.InRoom(rm.ID), []protocol.Outbound{
		protocol.To(peer, protocol.EventPeerDisconnected, pb.RoomClosed{
			Message: "your peer disconnected",
			RoomID:  closed.ID,
			Reason:  string(model.CloseDisconnect),
		}),
	}
}

// CloseRoom ends a room on request of the session service or an admin.
// Closing a closed room is a no-op; an unknown room is model.ErrNotFound.
func (c *Coordinator) CloseRoom(roomID string, reason model.CloseReason) ([]protocol.Outbound, error) {
	c.mu.Lock()
	rm, changed, err := c.rooms.Close(roomID)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	if !changed {
		return nil, nil
	}

	c.log.Info("room closed", "room", rm.ID, "reason", reason)
	c.observer.RoomClosed(rm, reason)

	out := make([]protocol.Outbound, 0, 2)
	for _, u := range rm.Members() {
		out = append(out, protocol.To(u, protocol.EventRoomClosed, pb.RoomClosed{
			Message: "room closed",
			RoomID:  rm.ID,
			Reason:  string(reason),
		}))
	}
	return out, nil
}

// Status derives the current status of u from pool and registry.
func (c *Coordinator) Status(u model.UserID) model.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pool.Get(u); ok {
		return model.Queued()
	}
	if rm, ok := c.rooms.LookupByUser(u); ok {
		return model.InRoom(rm.ID)
	}
	return model.Idle()
}

// Room returns a room in any state.
func (c *Coordinator) Room(id string) (model.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms.Get(id)
}

// Rooms returns a snapshot of the active rooms, oldest first.
func (c *Coordinator) Rooms() []model.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms.Active()
}

// Queue returns a snapshot of the waiting entries, oldest first.
func (c *Coordinator) Queue() []model.QueueEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.Entries()
}

// Stats is a point-in-time view of the coordinator state.
type Stats struct {
	Queued      int                      `json:"queued"`
	Depth       map[model.Difficulty]int `json:"depth"`
	ActiveRooms int                      `json:"active_rooms"`
}

// Stats returns the current pool and registry sizes.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Queued:      c.pool.Len(),
		Depth:       make(map[model.Difficulty]int),
		ActiveRooms: c.rooms.Len(),
	}
	for _, d := range model.Difficulties() {
		s.Depth[d] = c.pool.Depth(d)
	}
	return s
}
