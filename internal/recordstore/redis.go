package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// defaultTTL is how long an untouched split survives in Redis. Every
// write refreshes it; a room abandoned without being ended expires on
// its own.
const defaultTTL = 24 * time.Hour

// RedisStore implements Store on Redis: one JSON value per PIN plus a
// pub/sub channel that carries the full record after every accepted write.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis at the given URL. A ttl of zero or less
// uses the default of 24 hours.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: "split:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(pin string) string {
	return s.prefix + pin
}

func (s *RedisStore) channel(pin string) string {
	return s.prefix + "notify:" + pin
}

// Create stores a new record under pin.
func (s *RedisStore) Create(ctx context.Context, pin string, rec Record) error {
	rec.PIN = pin
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(pin), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	if !ok {
		return ErrConflict
	}

	s.publish(ctx, pin, data)
	return nil
}

// Get returns the current record for pin.
func (s *RedisStore) Get(ctx context.Context, pin string) (*Record, error) {
	data, err := s.client.Get(ctx, s.key(pin)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// Overwrite replaces the record for pin and publishes it to watchers.
func (s *RedisStore) Overwrite(ctx context.Context, pin string, rec Record) error {
	rec.PIN = pin
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if err := s.client.Set(ctx, s.key(pin), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("overwrite record: %w", err)
	}

	s.publish(ctx, pin, data)
	return nil
}

// publish fans the accepted record out on the pin's channel. A publish
// failure after a successful write costs watchers one notification, not
// the data: the next write carries the complete state again.
func (s *RedisStore) publish(ctx context.Context, pin string, data []byte) {
	if err := s.client.Publish(ctx, s.channel(pin), data).Err(); err != nil {
		slog.Warn("publish record notification failed", "pin", pin, "error", err)
	}
}

// Watch subscribes to the pin's notification channel.
func (s *RedisStore) Watch(ctx context.Context, pin string) (Subscription, error) {
	ps := s.client.Subscribe(ctx, s.channel(pin))

	// Force the subscription to be established before returning so a
	// write issued right after Watch cannot slip past the feed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", pin, err)
	}

	sub := &redisSub{
		ps:  ps,
		out: make(chan Record, 16),
	}
	go sub.pump(pin)
	return sub, nil
}

// Close closes the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type redisSub struct {
	ps   *redis.PubSub
	out  chan Record
	once sync.Once
}

func (s *redisSub) pump(pin string) {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		var rec Record
		if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
			slog.Warn("discarding malformed record notification", "pin", pin, "error", err)
			continue
		}
		s.out <- rec
	}
}

func (s *redisSub) Updates() <-chan Record {
	return s.out
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
	})
	return err
}
