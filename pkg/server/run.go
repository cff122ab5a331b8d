package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NicolasHaas/peermatch/pkg/model"
	"github.com/NicolasHaas/peermatch/pkg/version"
)

// shutdownTimeout bounds how long Shutdown waits for HTTP handlers.
const shutdownTimeout = 5 * time.Second

// Start binds the listener and serves in the background. It returns once
// the server accepts connections.
func (s *Server) Start() error {
	if s.verifier == nil {
		return errors.New("server: missing identity verifier")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.addr = ln.Addr().String()
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "err", err)
		}
	}()

	if s.bus != nil {
		go s.listenBus()
	}
	s.StartMetricsHTTP()
	s.metrics.StartPeriodicLog(s.cfg.MetricsLogInterval, s.coord.Stats, s.ctx.Done())

	slog.Info("peermatch server running",
		"addr", s.addr,
		"path", "/match",
		"metrics", s.cfg.MetricsAddr,
		"version", version.String(),
	)
	return nil
}

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// listenBus closes rooms the session service reports as ended. It retries
// until the server context is cancelled.
func (s *Server) listenBus() {
	ended := func(roomID string) {
		if err := s.closeRoom(roomID, model.CloseCompleted); err != nil {
			s.log.Warn("session ended for unknown room", "room", roomID, "err", err)
		}
	}
	for {
		err := s.bus.Listen(s.ctx, ended)
		if s.ctx.Err() != nil {
			return
		}
		s.log.Error("hand-off listener stopped, retrying", "err", err)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() {
	s.cancel()
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown", "err", err)
		}
	}
	// Hijacked websocket connections are not tracked by http.Server.
	for _, c := range s.sessions.All() {
		c.close()
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			slog.Warn("close hand-off bus", "err", err)
		}
	}
}

// Addr returns the bound listen address once Start succeeded.
func (s *Server) Addr() string {
	return s.addr
}
