package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/peermatch/pkg/identity"
	"github.com/NicolasHaas/peermatch/pkg/model"
	"github.com/NicolasHaas/peermatch/pkg/protocol"
	pb "github.com/NicolasHaas/peermatch/pkg/protocol/pb"
)

// Conn is one authenticated websocket connection on /match.
type Conn struct {
	id   uint64
	user model.UserID
	role model.Role
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	log  *slog.Logger

	closeOnce sync.Once
}

// User returns the verified user id of the connection.
func (c *Conn) User() model.UserID { return c.user }

// ID returns the process-unique connection id.
func (c *Conn) ID() uint64 { return c.id }

// enqueue queues a frame for the write pump. It reports false when the
// connection is closed or its buffer is full.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// close stops both pumps. Safe to call more than once.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// ServeWS upgrades an authenticated request on /match and serves the
// connection until it goes away.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.Verify(r)
	if err != nil {
		s.metrics.FailedAuths.Add(1)
		s.log.Warn("rejected connection", "remote", r.RemoteAddr, "err", err)
		status := http.StatusUnauthorized
		if !errors.Is(err, identity.ErrNoCredentials) && !errors.Is(err, identity.ErrInvalidToken) {
			status = http.StatusBadRequest
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	s.metrics.SuccessfulAuths.Add(1)
	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)

	c := &Conn{
		id:   s.sessions.newSessionID(),
		user: id.UserID,
		role: id.Role,
		ws:   ws,
		send: make(chan []byte, s.cfg.SendBuffer),
		done: make(chan struct{}),
	}
	c.log = s.log.With("user", c.user, "conn", c.id)

	if old := s.sessions.Add(c); old != nil {
		// The user reconnected: their queue entry or room survives, the old
		// socket just stops receiving.
		s.metrics.ReplacedConnections.Add(1)
		c.log.Info("replacing previous connection", "old_conn", old.id)
		old.close()
	}
	c.log.Info("user connected", "remote", r.RemoteAddr, "role", c.role)

	go s.writePump(c)
	s.readPump(c)

	c.close()
	s.metrics.ActiveConnections.Add(-1)
	s.metrics.TotalDisconnects.Add(1)
	if !s.sessions.RemoveIfSame(c) {
		c.log.Debug("replaced connection closed")
		return
	}
	prev, out := s.coord.Disconnect(c.user)
	if prev.Kind != model.StatusIdle {
		s.metrics.DisconnectCleanups.Add(1)
	}
	s.deliver(out)
	c.log.Info("user disconnected", "status", prev.Kind)
}

// readPump reads frames until the connection fails or is closed.
func (s *Server) readPump(c *Conn) {
	c.ws.SetReadLimit(protocol.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		msgType, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read error", "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			s.reply(c, protocol.EventError, pb.Message{Message: "only text frames are supported"})
			continue
		}
		s.handleMessage(c, frame)
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings.
func (s *Server) writePump(c *Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write error", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one inbound frame.
func (s *Server) handleMessage(c *Conn, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		s.metrics.RecordRejection(model.KindOf(err))
		s.reply(c, protocol.EventError, pb.Message{Message: publicMessage(err)})
		return
	}

	switch env.Event {
	case protocol.EventJoinQueue:
		s.handleJoin(c, env)
	case protocol.EventLeaveQueue:
		s.handleLeave(c, env)
	case protocol.EventPing:
		var p pb.Ping
		_ = protocol.DecodeData(env, &p)
		if p.Timestamp == 0 {
			p.Timestamp = time.Now().UnixMilli()
		}
		s.reply(c, protocol.EventPong, pb.Pong(p))
	default:
		s.metrics.RecordRejection(model.KindValidation)
		s.reply(c, protocol.EventError, pb.Message{Message: "unknown event: " + env.Event})
	}
}

func (s *Server) handleJoin(c *Conn, env protocol.Envelope) {
	claimed, set, err := protocol.DecodeJoin(env)
	if err == nil {
		err = checkSubject(c, claimed)
	}
	var out []protocol.Outbound
	if err == nil {
		out, err = s.coord.Join(c.user, set)
	}
	if err != nil {
		s.metrics.RecordRejection(model.KindOf(err))
		var re *model.RoomExistsError
		if errors.As(err, &re) {
			s.reply(c, protocol.EventRoomExists, pb.RoomExists{
				Message:        "you are already in a room",
				ExistingRoomID: re.RoomID,
			})
			return
		}
		c.log.Debug("join rejected", "err", err)
		s.reply(c, protocol.EventJoinQueueError, pb.Message{Message: publicMessage(err)})
		return
	}

	s.metrics.Joins.Add(1)
	if len(out) > 0 && out[0].Event == protocol.EventMatchFound {
		s.metrics.Matches.Add(1)
	}
	s.deliver(out)
}

func (s *Server) handleLeave(c *Conn, env protocol.Envelope) {
	claimed, err := protocol.DecodeLeave(env)
	if err == nil {
		err = checkSubject(c, claimed)
	}
	var out []protocol.Outbound
	if err == nil {
		out, err = s.coord.Leave(c.user)
	}
	if err != nil {
		s.metrics.RecordRejection(model.KindOf(err))
		c.log.Debug("leave rejected", "err", err)
		s.reply(c, protocol.EventLeaveQueueError, pb.Message{Message: publicMessage(err)})
		return
	}
	s.metrics.Leaves.Add(1)
	s.deliver(out)
}

// checkSubject accepts a payload that names no user or the connected user.
func checkSubject(c *Conn, claimed model.UserID) error {
	if claimed == "" || claimed == c.user {
		return nil
	}
	return model.ErrIdentityMismatch
}

// reply sends one event to c only.
func (s *Server) reply(c *Conn, event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		c.log.Error("encode reply", "event", event, "err", err)
		return
	}
	s.push(c, event, frame)
}

// deliver routes coordinator notifications to the recipients' live
// connections. Users without a connection are skipped.
func (s *Server) deliver(out []protocol.Outbound) {
	for _, o := range out {
		c := s.sessions.Get(o.To)
		if c == nil {
			s.metrics.DeliveriesSkipped.Add(1)
			s.log.Info("recipient not connected", "user", o.To, "event", o.Event)
			continue
		}
		frame, err := protocol.Encode(o.Event, o.Payload)
		if err != nil {
			s.log.Error("encode notification", "event", o.Event, "err", err)
			continue
		}
		s.push(c, o.Event, frame)
	}
}

// push hands a frame to the write pump. A connection whose buffer is full
// is too slow to keep up and gets disconnected.
func (s *Server) push(c *Conn, event string, frame []byte) {
	if c.enqueue(frame) {
		s.metrics.DeliveriesSent.Add(1)
		return
	}
	s.metrics.DeliveriesDropped.Add(1)
	select {
	case <-c.done:
		c.log.Debug("dropped event for closed connection", "event", event)
	default:
		c.log.Warn("send buffer full, disconnecting", "event", event)
		c.close()
	}
}

// publicMessage turns a core error into the text shown to the client,
// without the internal wrapping context.
func publicMessage(err error) string {
	for _, target := range []error{
		model.ErrIdentityMismatch,
		model.ErrInvalidCriteria,
		model.ErrUserIDEmpty,
		model.ErrUserIDTooLong,
		model.ErrUserIDInvalidChars,
		model.ErrAlreadyQueued,
		model.ErrNotQueued,
		model.ErrAlreadyInRoom,
		model.ErrNotFound,
		model.ErrInvalidRequest,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "internal error"
}
