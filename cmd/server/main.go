package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/NicolasHaas/peermatch/pkg/crypto"
	"github.com/NicolasHaas/peermatch/pkg/handoff"
	"github.com/NicolasHaas/peermatch/pkg/identity"
	"github.com/NicolasHaas/peermatch/pkg/logging"
	"github.com/NicolasHaas/peermatch/pkg/server"
	"github.com/NicolasHaas/peermatch/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	configFile := flag.String("config", "", "YAML config file (applied before environment and flags)")
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP bind address for /match and admin endpoints")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HS256 secret used to verify access tokens (prefer JWT_SECRET)")
	flag.StringVar(&cfg.TokenCookie, "token-cookie", cfg.TokenCookie, "Cookie carrying the access token")
	flag.StringVar(&cfg.TrustedUserHeader, "trusted-user-header", cfg.TrustedUserHeader, "Trust this request header as the user id (behind an authenticating proxy)")
	flag.StringVar(&cfg.TrustedRoleHeader, "trusted-role-header", cfg.TrustedRoleHeader, "Request header carrying the role when -trusted-user-header is set")
	flag.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for the room hand-off bus (empty to disable)")
	flag.StringVar(&cfg.NATSURL, "nats", cfg.NATSURL, "NATS URL for the room hand-off bus, instead of -redis")
	flag.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "Redis database number")
	flag.StringVar(&cfg.TicketKey, "ticket-key", cfg.TicketKey, "Hex key for room tickets (prefer TICKET_KEY; empty disables tickets)")
	flag.IntVar(&cfg.SendBuffer, "send-buffer", cfg.SendBuffer, "Outbound frames buffered per connection")
	flag.DurationVar(&cfg.MetricsLogInterval, "metrics-log-interval", cfg.MetricsLogInterval, "Interval of the periodic metrics log line (0 to disable)")

	genKey := flag.Bool("gen-ticket-key", false, "Print a new random ticket key and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}
	if *genKey {
		key, err := crypto.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hex.EncodeToString(key))
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	// Precedence: defaults < file < environment < flags. Parsing the
	// command line a second time re-applies the flags given explicitly.
	if *configFile != "" {
		if err := server.LoadConfigFile(*configFile, &cfg); err != nil {
			slog.Error("load config", "file", *configFile, "err", err)
			os.Exit(1)
		}
	}
	server.ApplyEnv(&cfg, os.Getenv)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	deps, err := buildDependencies(cfg)
	if err != nil {
		slog.Error("startup", "err", err)
		os.Exit(1)
	}

	slog.Info("starting peermatch", "version", version.Full())
	srv := server.New(cfg, deps)
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func buildDependencies(cfg server.Config) (server.Dependencies, error) {
	var deps server.Dependencies

	if cfg.TrustedUserHeader != "" {
		slog.Warn("trusting identity header, run only behind an authenticating proxy", "header", cfg.TrustedUserHeader)
		deps.Verifier = identity.HeaderVerifier{UserHeader: cfg.TrustedUserHeader, RoleHeader: cfg.TrustedRoleHeader}
	} else {
		deps.Verifier = identity.NewJWTVerifier([]byte(cfg.JWTSecret), cfg.TokenCookie)
	}

	if cfg.TicketKey != "" {
		key, err := crypto.ParseKey(cfg.TicketKey)
		if err != nil {
			return deps, fmt.Errorf("ticket key: %w", err)
		}
		t, err := crypto.NewTicketer(key)
		if err != nil {
			return deps, fmt.Errorf("ticket key: %w", err)
		}
		deps.Tickets = t
	}

	switch {
	case cfg.NATSURL != "":
		bus, err := handoff.NewNATSBus(handoff.NATSOptions{URL: cfg.NATSURL, Logger: slog.Default()})
		if err != nil {
			return deps, err
		}
		slog.Info("room hand-off enabled", "nats", cfg.NATSURL)
		deps.Bus = bus
		return deps, nil
	case cfg.RedisAddr == "":
		deps.Bus = handoff.Nop{}
		return deps, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bus, err := handoff.NewRedisBus(ctx, handoff.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Logger:   slog.Default(),
	})
	if err != nil {
		return deps, err
	}
	slog.Info("room hand-off enabled", "redis", cfg.RedisAddr)
	deps.Bus = bus
	return deps, nil
}
