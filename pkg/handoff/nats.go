package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

type natsPublisher struct{ nc *nats.Conn }

func (p natsPublisher) Publish(_ context.Context, subject string, message []byte) error {
	return p.nc.Publish(subject, message)
}

// NATSOptions configures a NATSBus.
type NATSOptions struct {
	URL    string
	Buffer int // events queued for publishing (default DefaultBuffer)
	Logger *slog.Logger
}

// NATSBus publishes room events on core NATS subjects named like the
// Redis channels.
type NATSBus struct {
	*emitter
	nc        *nats.Conn
	lost      chan struct{}
	closeOnce sync.Once
}

// NewNATSBus connects to NATS and starts the publisher. The connection
// reconnects on its own; Listen returns only when it is closed for good.
func NewNATSBus(opts NATSOptions) (*NATSBus, error) {
	lost := make(chan struct{})
	var lostOnce sync.Once
	nc, err := nats.Connect(opts.URL,
		nats.Name("peermatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.ClosedHandler(func(*nats.Conn) { lostOnce.Do(func() { close(lost) }) }),
	)
	if err != nil {
		return nil, fmt.Errorf("handoff: connect nats %s: %w", opts.URL, err)
	}
	return &NATSBus{
		emitter: newEmitter(natsPublisher{nc: nc}, opts.Buffer, opts.Logger),
		nc:      nc,
		lost:    lost,
	}, nil
}

// Listen subscribes to SessionEndedChannel and calls ended with the room
// id of every message until ctx is done or the connection is closed.
func (b *NATSBus) Listen(ctx context.Context, ended func(roomID string)) error {
	msgs := make(chan *nats.Msg, 64)
	sub, err := b.nc.ChanSubscribe(SessionEndedChannel, msgs)
	if err != nil {
		return fmt.Errorf("handoff: subscribe %s: %w", SessionEndedChannel, err)
	}
	defer func() { _ = sub.Unsubscribe() }()
	b.log.Info("subscribed", "channel", SessionEndedChannel, "broker", "nats")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.lost:
			return errors.New("handoff: nats connection closed")
		case msg := <-msgs:
			b.dispatch(string(msg.Data), ended)
		}
	}
}

// Close flushes queued events and drains the NATS connection.
func (b *NATSBus) Close() error {
	b.closeOnce.Do(func() {
		b.flush()
		if ferr := b.nc.FlushTimeout(publishTimeout); ferr != nil {
			b.log.Warn("flush nats", "err", ferr)
		}
		b.nc.Close()
	})
	return nil
}
