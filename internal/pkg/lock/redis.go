package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL   = 30 * time.Second
	retryBackoff = 25 * time.Millisecond
	maxBackoff   = 250 * time.Millisecond
)

// redisStore is the subset of the go-redis client used by RedisLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker shares locks between replicas with SETNX and a per-acquisition owner token.
// Keys expire after ttl so a crashed holder cannot block a resource forever;
// a live holder pushes the expiry forward until it releases.
type RedisLocker struct {
	client redisStore
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client redisStore, prefix string, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}, nil
}

// NewRedisClient parses url and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (l *RedisLocker) Lock(ctx context.Context, keys []string) (Release, error) {
	keys = Keys(l.prefix, keys)
	owner := uuid.NewString()
	held := make([]string, 0, len(keys))

	for _, k := range keys {
		if err := l.acquire(ctx, k, owner); err != nil {
			l.release(held, owner)
			return nil, err
		}
		held = append(held, k)
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(held, owner, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			l.release(held, owner)
		})
	}, nil
}

// keepAlive renews every held key each ttl/3 until stop is closed.
// Keys that changed owner are left alone.
func (l *RedisLocker) keepAlive(held []string, owner string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		for _, k := range held {
			value, err := l.client.Get(ctx, k).Result()
			if err != nil || value != owner {
				continue
			}
			l.client.PExpire(ctx, k, l.ttl)
		}
		cancel()
	}
}

func (l *RedisLocker) acquire(ctx context.Context, key, owner string) error {
	backoff := retryBackoff
	for {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ErrBusy.WithCause(ctx.Err())
			}
			return fmt.Errorf("setnx %s: %w", key, err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrBusy.WithCause(ctx.Err())
		case <-timer.C:
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// release deletes each key only while it still carries owner.
func (l *RedisLocker) release(held []string, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(held) - 1; i >= 0; i-- {
		value, err := l.client.Get(ctx, held[i]).Result()
		if err != nil || value != owner {
			continue
		}
		l.client.Del(ctx, held[i])
	}
}
