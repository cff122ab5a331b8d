package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", s.handleHealth)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	stats := s.coord.Stats()
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable.
	header := func(name, help, mtype string) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
	}
	write := func(name, help, mtype string, value int64) {
		header(name, help, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	header("peermatch_uptime_seconds", "Server uptime in seconds.", "gauge")
	_, _ = fmt.Fprintf(w, "peermatch_uptime_seconds %f\n", uptime)

	write("peermatch_connections_active", "Current open websocket connections.", "gauge",
		m.ActiveConnections.Load())
	write("peermatch_connections_total", "Lifetime websocket connections accepted.", "counter",
		m.TotalConnections.Load())
	write("peermatch_connections_replaced_total", "Connections replaced by a reconnect.", "counter",
		m.ReplacedConnections.Load())
	write("peermatch_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())
	write("peermatch_disconnect_cleanups_total", "Disconnects that released queue or room state.", "counter",
		m.DisconnectCleanups.Load())

	write("peermatch_auth_success_total", "Verified connection attempts.", "counter",
		m.SuccessfulAuths.Load())
	write("peermatch_auth_failed_total", "Connection attempts without a valid identity.", "counter",
		m.FailedAuths.Load())

	write("peermatch_joins_total", "Accepted join-queue requests.", "counter", m.Joins.Load())
	write("peermatch_matches_total", "Rooms created by the matcher.", "counter", m.Matches.Load())
	write("peermatch_leaves_total", "Accepted leave-queue requests.", "counter", m.Leaves.Load())
	write("peermatch_rooms_closed_external_total", "Rooms closed by the session service or an admin.", "counter",
		m.RoomsClosedExternal.Load())

	header("peermatch_rejections_total", "Rejected requests by error kind.", "counter")
	for k := model.KindValidation; k <= model.KindInternal; k++ {
		_, _ = fmt.Fprintf(w, "peermatch_rejections_total{kind=%q} %d\n", k.String(), m.Rejections(k))
	}

	write("peermatch_deliveries_sent_total", "Frames handed to a connection.", "counter",
		m.DeliveriesSent.Load())
	write("peermatch_deliveries_dropped_total", "Frames dropped on closed or slow connections.", "counter",
		m.DeliveriesDropped.Load())
	write("peermatch_deliveries_skipped_total", "Notifications for users with no connection.", "counter",
		m.DeliveriesSkipped.Load())

	write("peermatch_queue_length", "Users waiting for a match.", "gauge", int64(stats.Queued))
	header("peermatch_queue_depth", "Waiting users per difficulty.", "gauge")
	for _, d := range model.Difficulties() {
		_, _ = fmt.Fprintf(w, "peermatch_queue_depth{difficulty=%q} %d\n", d.String(), stats.Depth[d])
	}
	write("peermatch_rooms_active", "Active rooms.", "gauge", int64(stats.ActiveRooms))
}
