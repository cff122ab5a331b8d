package handoff

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

// DefaultBuffer is the number of events queued for publishing.
const DefaultBuffer = 256

const publishTimeout = 2 * time.Second

// publisher is the part of a broker client the buses publish through.
type publisher interface {
	Publish(ctx context.Context, channel string, message []byte) error
}

// emitter implements match.Observer on top of a publisher. Observer calls
// never block: events are queued and published by a background goroutine,
// and dropped when the queue is full.
type emitter struct {
	pub    publisher
	events chan Event
	now    func() time.Time
	log    *slog.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex // guards closed against sends on events
	closed bool
}

func newEmitter(pub publisher, buffer int, logger *slog.Logger) *emitter {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &emitter{
		pub:    pub,
		events: make(chan Event, buffer),
		now:    time.Now,
		log:    logger.With("component", "handoff"),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *emitter) run() {
	defer e.wg.Done()
	for ev := range e.events {
		data, err := json.Marshal(ev)
		if err != nil {
			e.log.Error("marshal event", "room", ev.RoomID, "err", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = e.pub.Publish(ctx, MatchesChannel, data)
		cancel()
		if err != nil {
			e.log.Warn("publish event", "type", ev.Type, "room", ev.RoomID, "err", err)
			continue
		}
		e.log.Debug("published event", "type", ev.Type, "room", ev.RoomID)
	}
}

func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.log.Warn("event queue full, dropping", "type", ev.Type, "room", ev.RoomID)
	}
}

// RoomOpened publishes a room_opened event.
func (e *emitter) RoomOpened(rm model.Room) {
	e.emit(NewEvent(TypeRoomOpened, rm, "", e.now()))
}

// RoomClosed publishes a room_closed event.
func (e *emitter) RoomClosed(rm model.Room, reason model.CloseReason) {
	e.emit(NewEvent(TypeRoomClosed, rm, reason, e.now()))
}

// flush stops accepting events and waits until the queued ones are
// published. It must be called once.
func (e *emitter) flush() {
	e.mu.Lock()
	e.closed = true
	close(e.events)
	e.mu.Unlock()
	e.wg.Wait()
}

// dispatch parses a session_ended payload and hands the room id to ended.
func (e *emitter) dispatch(payload string, ended func(string)) {
	roomID, err := ParseSessionEnded(payload)
	if err != nil {
		e.log.Warn("bad session_ended message", "payload", payload, "err", err)
		return
	}
	ended(roomID)
}
