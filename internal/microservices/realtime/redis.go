package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTransport implements Transport on top of Redis pub/sub.
type RedisTransport struct {
	client *redis.Client
}

// NewRedisTransport connects to Redis using a redis:// URL and verifies the
// connection before returning.
func NewRedisTransport(url, password string) (*RedisTransport, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTransport{client: rdb}, nil
}

func (t *RedisTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	return t.client.Publish(ctx, channel, payload).Err()
}

func (t *RedisTransport) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	ps := t.client.Subscribe(ctx, channels...)

	// Force the SUBSCRIBE round-trip so a dead broker fails here instead of
	// silently producing an empty stream.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}

	sub := &redisSubscription{ps: ps, events: make(chan Message, 64)}
	go sub.pump()
	return sub, nil
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan Message
}

func (s *redisSubscription) pump() {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		s.events <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}
	}
}

func (s *redisSubscription) Events() <-chan Message {
	return s.events
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}
