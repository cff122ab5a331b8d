// Package server implements the peermatch server: the /match websocket
// gateway, the admin endpoints and the wiring around the coordinator.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/peermatch/pkg/crypto"
	"github.com/NicolasHaas/peermatch/pkg/identity"
	"github.com/NicolasHaas/peermatch/pkg/logging"
	"github.com/NicolasHaas/peermatch/pkg/match"
	"github.com/NicolasHaas/peermatch/pkg/model"
	"github.com/NicolasHaas/peermatch/pkg/protocol"
)

// Config holds server configuration.
type Config struct {
	ListenAddr     string   `yaml:"listen_addr"`     // HTTP bind address for /match and admin endpoints
	MetricsAddr    string   `yaml:"metrics_addr"`    // HTTP bind address for /metrics (empty = disabled)
	AllowedOrigins []string `yaml:"allowed_origins"` // websocket Origin allow-list (empty = any)

	JWTSecret         string `yaml:"jwt_secret"`          // HS256 secret of the identity service
	TokenCookie       string `yaml:"token_cookie"`        // cookie holding the access token
	TrustedUserHeader string `yaml:"trusted_user_header"` // trust this header instead of a token (behind a proxy)
	TrustedRoleHeader string `yaml:"trusted_role_header"`

	RedisAddr     string `yaml:"redis_addr"` // room hand-off bus (empty = disabled)
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	NATSURL       string `yaml:"nats_url"` // alternative hand-off bus (empty = disabled)

	TicketKey string `yaml:"ticket_key"` // hex key for room tickets (empty = no tickets)

	SendBuffer         int           `yaml:"send_buffer"` // outbound frames buffered per connection
	PingInterval       time.Duration `yaml:"ping_interval"`
	PongWait           time.Duration `yaml:"pong_wait"`
	WriteWait          time.Duration `yaml:"write_wait"`
	ClosedRoomHistory  int           `yaml:"closed_room_history"`
	MetricsLogInterval time.Duration `yaml:"metrics_log_interval"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         ":5000",
		MetricsAddr:        ":5002",
		TokenCookie:        "accessToken",
		SendBuffer:         32,
		PingInterval:       54 * time.Second,
		PongWait:           60 * time.Second,
		WriteWait:          10 * time.Second,
		MetricsLogInterval: 60 * time.Second,
	}
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Bus and will Close() it on shutdown.
type Dependencies struct {
	Verifier identity.Verifier // required
	Bus      Bus               // optional room hand-off
	Tickets  *crypto.Ticketer  // optional
	Now      func() time.Time  // optional clock, for tests
	NewID    func() string     // optional room id generator, for tests
}

// Bus hands rooms off to the session service and reports rooms it has
// finished with.
type Bus interface {
	match.Observer
	Listen(ctx context.Context, ended func(roomID string)) error
	Close() error
}

// Server is the main peermatch server.
type Server struct {
	cfg      Config
	coord    *match.Coordinator
	sessions *SessionRegistry
	metrics  *Metrics
	verifier identity.Verifier
	bus      Bus
	upgrader websocket.Upgrader
	log      *slog.Logger
	http     *http.Server
	addr     string
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		sessions: NewSessionRegistry(),
		metrics:  NewMetrics(),
		verifier: deps.Verifier,
		bus:      deps.Bus,
		log:      logging.For("server"),
		ctx:      ctx,
		cancel:   cancel,
	}
	opts := match.Options{
		Now:           deps.Now,
		NewRoomID:     deps.NewID,
		ClosedHistory: cfg.ClosedRoomHistory,
		Tickets:       deps.Tickets,
		Logger:        logging.For("match"),
	}
	if deps.Bus != nil {
		opts.Observer = deps.Bus
	}
	s.coord = match.New(opts)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Coordinator returns the match coordinator.
func (s *Server) Coordinator() *match.Coordinator {
	return s.coord
}

// Sessions returns the session registry.
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser client
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Handler returns the HTTP handler serving /match and the admin endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+protocol.Namespace, s.ServeWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /rooms", s.handleListRooms)
	mux.HandleFunc("GET /rooms.yaml", s.handleExportRooms)
	mux.HandleFunc("GET /queue", s.handleListQueue)
	mux.HandleFunc("POST /rooms/{id}/close", s.handleCloseRoom)
	return mux
}

// closeRoom ends a room on request of the session service or an admin and
// notifies both members.
func (s *Server) closeRoom(roomID string, reason model.CloseReason) error {
	out, err := s.coord.CloseRoom(roomID, reason)
	if err != nil {
		return err
	}
	if len(out) > 0 {
		s.metrics.RoomsClosedExternal.Add(1)
	}
	s.deliver(out)
	return nil
}
