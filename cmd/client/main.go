// Command client joins the peermatch queue and waits for a match. It is a
// smoke-test and scripting tool for the /match channel.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/NicolasHaas/peermatch/pkg/client"
	"github.com/NicolasHaas/peermatch/pkg/logging"
	"github.com/NicolasHaas/peermatch/pkg/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:5000/match", "Match channel URL")
	user := flag.String("user", "", "User id to queue as (required)")
	difficulties := flag.String("difficulties", "easy", "Comma-separated difficulties: easy, medium, hard")
	userHeader := flag.String("user-header", "", "Send -user in this header instead of a token (trusted-header deployments)")
	timeout := flag.Duration("timeout", 0, "Give up waiting for a match after this long (0 waits forever)")
	flag.Parse()

	// Default to "info"; override with PEERMATCH_LOG_LEVEL env var (debug, info, warn, error).
	level := "info"
	if v := os.Getenv("PEERMATCH_LOG_LEVEL"); v != "" {
		level = v
	}
	_ = logging.Setup(logging.Options{Level: level, Output: os.Stderr})

	if *user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	opts := client.Options{Token: os.Getenv("PEERMATCH_TOKEN")}
	if *userHeader != "" {
		opts.Header = http.Header{}
		opts.Header.Set(*userHeader, *user)
	}
	if err := run(ctx, *url, *user, strings.Split(*difficulties, ","), opts); err != nil {
		slog.Error("client", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, url, user string, difficulties []string, opts client.Options) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, url, opts)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()
	c.StartReceiving()

	if err := c.JoinQueue(user, difficulties); err != nil {
		return err
	}

	for {
		env, err := c.Await(ctx,
			protocol.EventJoinQueueSuccess,
			protocol.EventJoinQueueError,
			protocol.EventRoomExists,
			protocol.EventMatchFound,
			protocol.EventError,
		)
		if err != nil {
			if ctx.Err() != nil {
				// Give up our place before leaving.
				_ = c.LeaveQueue(user)
			}
			return err
		}
		switch env.Event {
		case protocol.EventJoinQueueSuccess:
			slog.Info("waiting for a match", "user", user, "difficulties", difficulties)
		case protocol.EventMatchFound, protocol.EventRoomExists:
			return printJSON(env)
		default:
			_ = printJSON(env)
			return fmt.Errorf("server rejected join: %s", env.Event)
		}
	}
}

func printJSON(env protocol.Envelope) error {
	out, err := json.Marshal(env)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
