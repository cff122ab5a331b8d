package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

// LoadConfigFile overlays the YAML file at path onto cfg. Keys missing
// from the file keep their current value.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data, cfg)
}

// ParseConfig overlays YAML data onto cfg. Unknown keys are rejected.
func ParseConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from the environment variables the deployment
// sets: PORT, METRICS_ADDR, JWT_SECRET, REDIS_ADDR, REDIS_PASSWORD,
// NATS_URL, TICKET_KEY and ALLOWED_ORIGINS.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.ListenAddr = ":" + v
		} else {
			cfg.ListenAddr = v
		}
	}
	if v, ok := lookup(getenv, "METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v, ok := lookup(getenv, "REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v, ok := lookup(getenv, "NATS_URL"); ok {
		cfg.NATSURL = v
	}
	if v := getenv("TICKET_KEY"); v != "" {
		cfg.TicketKey = v
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
}

// lookup treats the value "-" as an explicit empty string, so an
// environment can disable an optional listener.
func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	switch v {
	case "":
		return "", false
	case "-":
		return "", true
	}
	return v, true
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first setting that would make the server misbehave.
func (c Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return errors.New("config: listen_addr is required")
	case c.JWTSecret == "" && c.TrustedUserHeader == "":
		return errors.New("config: one of jwt_secret or trusted_user_header is required")
	case c.RedisAddr != "" && c.NATSURL != "":
		return errors.New("config: set only one of redis_addr and nats_url")
	case c.SendBuffer <= 0:
		return fmt.Errorf("config: send_buffer must be positive, got %d", c.SendBuffer)
	case c.PongWait <= 0 || c.WriteWait <= 0:
		return errors.New("config: pong_wait and write_wait must be positive")
	case c.PingInterval <= 0 || c.PingInterval >= c.PongWait:
		return fmt.Errorf("config: ping_interval %s must be positive and shorter than pong_wait %s", c.PingInterval, c.PongWait)
	case c.ClosedRoomHistory < 0:
		return errors.New("config: closed_room_history must not be negative")
	}
	return nil
}

// RoomYAML represents a room in YAML export.
type RoomYAML struct {
	ID         string   `yaml:"id"`
	Members    []string `yaml:"members"`
	Difficulty string   `yaml:"difficulty"`
	State      string   `yaml:"state"`
	CreatedAt  string   `yaml:"created_at"`
	ClosedAt   string   `yaml:"closed_at,omitempty"`
}

// RoomsExport is the top-level YAML for room export.
type RoomsExport struct {
	Rooms []RoomYAML `yaml:"rooms"`
}

// ExportRoomsYAML exports rooms as YAML.
func ExportRoomsYAML(rooms []model.Room) ([]byte, error) {
	export := RoomsExport{Rooms: make([]RoomYAML, 0, len(rooms))}
	for _, rm := range rooms {
		entry := RoomYAML{
			ID:         rm.ID,
			Members:    []string{rm.MemberA.String(), rm.MemberB.String()},
			Difficulty: rm.Difficulty.String(),
			State:      rm.State.String(),
			CreatedAt:  rm.CreatedAt.UTC().Format(time.RFC3339),
		}
		if !rm.ClosedAt.IsZero() {
			entry.ClosedAt = rm.ClosedAt.UTC().Format(time.RFC3339)
		}
		export.Rooms = append(export.Rooms, entry)
	}
	return yaml.Marshal(&export)
}
