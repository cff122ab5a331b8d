package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/NicolasHaas/peermatch/pkg/match"
	"github.com/NicolasHaas/peermatch/pkg/model"
)

const numErrorKinds = int(model.KindInternal) + 1

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections    atomic.Int64 // lifetime websocket connections accepted
	ActiveConnections   atomic.Int64 // current open websocket connections
	FailedAuths         atomic.Int64 // upgrade requests without a valid identity
	SuccessfulAuths     atomic.Int64 // verified upgrade requests
	TotalDisconnects    atomic.Int64 // connections that went away
	ReplacedConnections atomic.Int64 // connections superseded by a reconnect of the same user
	DisconnectCleanups  atomic.Int64 // disconnects that released a queue entry or a room

	// Matching counters
	Joins               atomic.Int64 // accepted join-queue requests
	Matches             atomic.Int64 // rooms created by the matcher
	Leaves              atomic.Int64 // accepted leave-queue requests
	RoomsClosedExternal atomic.Int64 // rooms closed by the session service or an admin

	// Delivery counters
	DeliveriesSent    atomic.Int64 // frames handed to a write pump
	DeliveriesDropped atomic.Int64 // frames dropped on a closed or slow connection
	DeliveriesSkipped atomic.Int64 // notifications for users with no connection

	rejections [numErrorKinds]atomic.Int64
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// RecordRejection counts a rejected request by error kind.
func (m *Metrics) RecordRejection(k model.ErrorKind) {
	if int(k) < 0 || int(k) >= numErrorKinds {
		k = model.KindInternal
	}
	m.rejections[k].Add(1)
}

// Rejections returns the number of rejected requests of kind k.
func (m *Metrics) Rejections(k model.ErrorKind) int64 {
	if int(k) < 0 || int(k) >= numErrorKinds {
		return 0
	}
	return m.rejections[k].Load()
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections   int64 `json:"active_connections"`
	TotalConnections    int64 `json:"total_connections"`
	SuccessfulAuths     int64 `json:"successful_auths"`
	FailedAuths         int64 `json:"failed_auths"`
	TotalDisconnects    int64 `json:"total_disconnects"`
	ReplacedConnections int64 `json:"replaced_connections"`
	DisconnectCleanups  int64 `json:"disconnect_cleanups"`

	Joins               int64 `json:"joins"`
	Matches             int64 `json:"matches"`
	Leaves              int64 `json:"leaves"`
	RoomsClosedExternal int64 `json:"rooms_closed_external"`

	DeliveriesSent    int64 `json:"deliveries_sent"`
	DeliveriesDropped int64 `json:"deliveries_dropped"`
	DeliveriesSkipped int64 `json:"deliveries_skipped"`

	Rejections map[string]int64 `json:"rejections"`

	Queue match.Stats `json:"queue"`
}

// Snapshot returns a read-consistent snapshot of all metrics together with
// the coordinator gauges.
func (m *Metrics) Snapshot(stats match.Stats) MetricsSnapshot {
	uptime := time.Since(m.startTime)
	s := MetricsSnapshot{
		Uptime:              uptime.Truncate(time.Second).String(),
		UptimeSeconds:       int64(uptime.Seconds()),
		ActiveConnections:   m.ActiveConnections.Load(),
		TotalConnections:    m.TotalConnections.Load(),
		SuccessfulAuths:     m.SuccessfulAuths.Load(),
		FailedAuths:         m.FailedAuths.Load(),
		TotalDisconnects:    m.TotalDisconnects.Load(),
		ReplacedConnections: m.ReplacedConnections.Load(),
		DisconnectCleanups:  m.DisconnectCleanups.Load(),
		Joins:               m.Joins.Load(),
		Matches:             m.Matches.Load(),
		Leaves:              m.Leaves.Load(),
		RoomsClosedExternal: m.RoomsClosedExternal.Load(),
		DeliveriesSent:      m.DeliveriesSent.Load(),
		DeliveriesDropped:   m.DeliveriesDropped.Load(),
		DeliveriesSkipped:   m.DeliveriesSkipped.Load(),
		Rejections:          make(map[string]int64),
		Queue:               stats,
	}
	for k := model.KindValidation; k <= model.KindInternal; k++ {
		s.Rejections[k.String()] = m.rejections[k].Load()
	}
	return s
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON(stats match.Stats) string {
	data, err := json.MarshalIndent(m.Snapshot(stats), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary(stats match.Stats) {
	s := m.Snapshot(stats)
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"queued", stats.Queued,
		"active_rooms", stats.ActiveRooms,
		"joins", s.Joins,
		"matches", s.Matches,
		"dropped", s.DeliveriesDropped,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, stats func() match.Stats, done <-chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary(stats())
			}
		}
	}()
}
