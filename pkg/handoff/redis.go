package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

type redisPublisher struct{ rdb *redis.Client }

func (p redisPublisher) Publish(ctx context.Context, channel string, message []byte) error {
	return p.rdb.Publish(ctx, channel, message).Err()
}

// RedisOptions configures a RedisBus.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Buffer   int // events queued for publishing (default DefaultBuffer)
	Logger   *slog.Logger
}

// RedisBus publishes room events through Redis pub/sub.
type RedisBus struct {
	*emitter
	rdb       *redis.Client
	closeOnce sync.Once
}

// NewRedisBus connects to Redis and starts the publisher.
func NewRedisBus(ctx context.Context, opts RedisOptions) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("handoff: connect redis %s: %w", opts.Addr, err)
	}
	b := newBus(redisPublisher{rdb: rdb}, opts.Buffer, opts.Logger)
	b.rdb = rdb
	return b, nil
}

func newBus(pub publisher, buffer int, logger *slog.Logger) *RedisBus {
	return &RedisBus{emitter: newEmitter(pub, buffer, logger)}
}

// Listen subscribes to SessionEndedChannel and calls ended with the room
// id of every message until ctx is done or the subscription fails.
func (b *RedisBus) Listen(ctx context.Context, ended func(roomID string)) error {
	if b.rdb == nil {
		return errors.New("handoff: bus has no redis client")
	}
	sub := b.rdb.Subscribe(ctx, SessionEndedChannel)
	defer func() { _ = sub.Close() }()

	// Receive blocks until Redis confirms the subscription.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("handoff: subscribe %s: %w", SessionEndedChannel, err)
	}
	b.log.Info("subscribed", "channel", SessionEndedChannel, "broker", "redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("handoff: subscription closed")
			}
			b.dispatch(msg.Payload, ended)
		}
	}
}

// Close flushes queued events and closes the Redis client.
func (b *RedisBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.flush()
		if b.rdb != nil {
			err = b.rdb.Close()
		}
	})
	return err
}
