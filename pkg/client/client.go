// Package client implements a Go client for the peermatch /match channel,
// used by the command-line client and by load tests.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/peermatch/pkg/protocol"
	pb "github.com/NicolasHaas/peermatch/pkg/protocol/pb"
)

// ErrClosed is returned when waiting on a connection that went away.
var ErrClosed = errors.New("client: connection closed")

// EventHandler is a callback for incoming events.
type EventHandler func(env protocol.Envelope)

// Options controls how Dial authenticates.
type Options struct {
	Token  string      // sent as a bearer token
	Header http.Header // extra handshake headers, e.g. a trusted user header
}

// MatchClient is one websocket connection to the match channel.
type MatchClient struct {
	ws      *websocket.Conn
	mu      sync.Mutex // serialises writes
	handler EventHandler
	events  chan protocol.Envelope
	done    chan struct{}
}

// Dial connects to url, e.g. ws://localhost:5000/match.
func Dial(ctx context.Context, url string, opts Options) (*MatchClient, error) {
	h := http.Header{}
	for k, vs := range opts.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if opts.Token != "" {
		h.Set("Authorization", "Bearer "+opts.Token)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, h)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: connect %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("client: connect %s: %w", url, err)
	}

	return &MatchClient{
		ws:     ws,
		events: make(chan protocol.Envelope, 16),
		done:   make(chan struct{}),
	}, nil
}

// SetEventHandler sets a callback for incoming events. Without a handler,
// events are buffered for Await.
func (c *MatchClient) SetEventHandler(handler EventHandler) {
	c.handler = handler
}

// Send emits an event. The payload is sent as a JSON object.
func (c *MatchClient) Send(event string, payload any) error {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("client: send %s: %w", event, err)
	}
	return nil
}

// JoinQueue asks to be matched on any of the given difficulties.
func (c *MatchClient) JoinQueue(user string, difficulties []string) error {
	return c.Send(protocol.EventJoinQueue, pb.JoinQueueRequest{UserID: user, Difficulties: difficulties})
}

// LeaveQueue withdraws from the queue.
func (c *MatchClient) LeaveQueue(user string) error {
	return c.Send(protocol.EventLeaveQueue, pb.LeaveQueueRequest{UserID: user})
}

// StartReceiving starts a goroutine that reads incoming events and
// dispatches them to the event handler.
func (c *MatchClient) StartReceiving() {
	go func() {
		defer close(c.done)
		for {
			_, frame, err := c.ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("match connection closed")
				} else {
					slog.Debug("match read error", "err", err)
				}
				return
			}
			env, err := protocol.Decode(frame)
			if err != nil {
				slog.Warn("bad frame from server", "err", err)
				continue
			}
			if c.handler != nil {
				c.handler(env)
				continue
			}
			select {
			case c.events <- env:
			default:
				slog.Warn("event buffer full, dropping", "event", env.Event)
			}
		}
	}()
}

// Await returns the next buffered event whose name is one of events.
// Other events are discarded.
func (c *MatchClient) Await(ctx context.Context, events ...string) (protocol.Envelope, error) {
	for {
		select {
		case <-ctx.Done():
			return protocol.Envelope{}, ctx.Err()
		case env := <-c.events:
			for _, e := range events {
				if env.Event == e {
					return env, nil
				}
			}
			slog.Debug("skipping event", "event", env.Event)
		case <-c.done:
			// Drain what arrived before the close.
			select {
			case env := <-c.events:
				for _, e := range events {
					if env.Event == e {
						return env, nil
					}
				}
				continue
			default:
			}
			return protocol.Envelope{}, ErrClosed
		}
	}
}

// Close sends a close frame and closes the connection.
func (c *MatchClient) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}

// Done returns a channel that's closed when the connection is lost.
func (c *MatchClient) Done() <-chan struct{} {
	return c.done
}
