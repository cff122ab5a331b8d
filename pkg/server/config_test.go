package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

func TestParseConfigOverlay(t *testing.T) {
	cfg := DefaultConfig()
	data := []byte(`
listen_addr: ":8080"
jwt_secret: "s3cret"
allowed_origins: ["https://app.example"]
ping_interval: 20s
pong_wait: 30s
send_buffer: 8
`)
	if err := ParseConfig(data, &cfg); err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.JWTSecret != "s3cret" {
		t.Fatalf("ParseConfig: got addr=%q secret=%q", cfg.ListenAddr, cfg.JWTSecret)
	}
	if cfg.PingInterval != 20*time.Second || cfg.PongWait != 30*time.Second {
		t.Fatalf("ParseConfig: durations ping=%s pong=%s", cfg.PingInterval, cfg.PongWait)
	}
	if cfg.SendBuffer != 8 || len(cfg.AllowedOrigins) != 1 {
		t.Fatalf("ParseConfig: buffer=%d origins=%v", cfg.SendBuffer, cfg.AllowedOrigins)
	}
	// Untouched keys keep their defaults.
	if cfg.WriteWait != DefaultConfig().WriteWait || cfg.MetricsAddr != ":5002" {
		t.Fatalf("ParseConfig: defaults lost: write=%s metrics=%q", cfg.WriteWait, cfg.MetricsAddr)
	}
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := ParseConfig([]byte("listen_adress: \":1\"\n"), &cfg); err == nil {
		t.Fatal("ParseConfig: expected error for misspelled key")
	}
}

func TestParseConfigEmpty(t *testing.T) {
	cfg := DefaultConfig()
	if err := ParseConfig(nil, &cfg); err != nil {
		t.Fatalf("ParseConfig(empty): %v", err)
	}
	if cfg.ListenAddr != ":5000" {
		t.Fatalf("ParseConfig(empty): listen addr %q", cfg.ListenAddr)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peermatch.yaml")
	if err := os.WriteFile(path, []byte("redis_addr: \"localhost:6379\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := DefaultConfig()
	if err := LoadConfigFile(path, &cfg); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("LoadConfigFile: redis addr %q", cfg.RedisAddr)
	}
	if err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Fatal("LoadConfigFile: expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":            "7000",
		"METRICS_ADDR":    "-",
		"JWT_SECRET":      "from-env",
		"REDIS_ADDR":      "redis:6379",
		"NATS_URL":        "nats://nats:4222",
		"TICKET_KEY":      "00112233445566778899aabbccddeeff",
		"ALLOWED_ORIGINS": "https://a.example, https://b.example,",
	}
	cfg := DefaultConfig()
	ApplyEnv(&cfg, func(k string) string { return env[k] })

	if cfg.ListenAddr != ":7000" {
		t.Fatalf("ApplyEnv: listen addr %q", cfg.ListenAddr)
	}
	if cfg.MetricsAddr != "" {
		t.Fatalf("ApplyEnv: metrics addr %q, want disabled", cfg.MetricsAddr)
	}
	if cfg.JWTSecret != "from-env" || cfg.RedisAddr != "redis:6379" || cfg.TicketKey == "" {
		t.Fatalf("ApplyEnv: got %+v", cfg)
	}
	if cfg.NATSURL != "nats://nats:4222" {
		t.Fatalf("ApplyEnv: nats url %q", cfg.NATSURL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("ApplyEnv: origins %v", cfg.AllowedOrigins)
	}

	cfg = DefaultConfig()
	ApplyEnv(&cfg, func(k string) string {
		if k == "PORT" {
			return "0.0.0.0:9000"
		}
		return ""
	})
	if cfg.ListenAddr != "0.0.0.0:9000" || cfg.MetricsAddr != ":5002" {
		t.Fatalf("ApplyEnv: addr %q metrics %q", cfg.ListenAddr, cfg.MetricsAddr)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.JWTSecret = "secret"

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"trusted header instead of secret", func(c *Config) { c.JWTSecret = ""; c.TrustedUserHeader = "X-User-Id" }, ""},
		{"no listen addr", func(c *Config) { c.ListenAddr = "" }, "listen_addr"},
		{"no identity", func(c *Config) { c.JWTSecret = "" }, "jwt_secret"},
		{"zero buffer", func(c *Config) { c.SendBuffer = 0 }, "send_buffer"},
		{"ping after pong", func(c *Config) { c.PingInterval = c.PongWait }, "ping_interval"},
		{"two buses", func(c *Config) { c.RedisAddr = "r:6379"; c.NATSURL = "nats://n:4222" }, "nats_url"},
		{"negative history", func(c *Config) { c.ClosedRoomHistory = -1 }, "closed_room_history"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate: got %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestExportRoomsYAML(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rooms := []model.Room{
		{ID: "r1", MemberA: "alice", MemberB: "bob", Difficulty: model.DifficultyEasy, CreatedAt: created, State: model.RoomActive},
		{ID: "r2", MemberA: "carol", MemberB: "dave", Difficulty: model.DifficultyHard, CreatedAt: created,
			ClosedAt: created.Add(time.Hour), State: model.RoomClosed},
	}
	data, err := ExportRoomsYAML(rooms)
	if err != nil {
		t.Fatalf("ExportRoomsYAML: %v", err)
	}
	var got RoomsExport
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.Rooms) != 2 {
		t.Fatalf("ExportRoomsYAML: %d rooms", len(got.Rooms))
	}
	if got.Rooms[0].ClosedAt != "" || got.Rooms[0].CreatedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("ExportRoomsYAML: room 1 = %+v", got.Rooms[0])
	}
	if got.Rooms[1].State != "closed" || got.Rooms[1].ClosedAt != "2026-03-01T13:00:00Z" {
		t.Fatalf("ExportRoomsYAML: room 2 = %+v", got.Rooms[1])
	}

	empty, err := ExportRoomsYAML(nil)
	if err != nil {
		t.Fatalf("ExportRoomsYAML(nil): %v", err)
	}
	if strings.TrimSpace(string(empty)) != "rooms: []" {
		t.Fatalf("ExportRoomsYAML(nil) = %q", empty)
	}
}
