// Package lock serialises work on a single inventory unit across service
// instances. The gate is taken before the database transaction starts; the
// row lock inside the transaction remains the authority.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

// Gate grants exclusive access to a key. The returned release func is always
// safe to call.
type Gate interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// NoopGate grants every request immediately. Used for single-instance
// deployments where the store's own locking is sufficient.
type NoopGate struct{}

func (NoopGate) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// RedisGate is a Gate backed by redislock.
type RedisGate struct {
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	prefix string
}

// NewRedisGate builds a gate whose locks expire after ttl and whose
// acquisition gives up after wait.
func NewRedisGate(client redis.UniversalClient, ttl, wait time.Duration) *RedisGate {
	return &RedisGate{
		locker: redislock.New(client),
		ttl:    ttl,
		wait:   wait,
		prefix: "bloodbank:gate:",
	}
}

func (g *RedisGate) Acquire(ctx context.Context, key string) (func(), error) {
	obtainCtx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()

	l, err := g.locker.Obtain(obtainCtx, g.prefix+key, g.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if err != nil {
		return func() {}, obtainError(key, err)
	}

	return func() {
		// The caller's context may already be done; release on a fresh one.
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.Release(relCtx)
	}, nil
}

func obtainError(key string, err error) error {
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.CodeTransactionTimeout, err, "gate %s busy", key)
	}
	return apperr.Wrap(apperr.CodeStorageUnavailable, err, "gate %s", key)
}

// UnitKey is the gate key for an inventory unit.
func UnitKey(unitID fmt.Stringer) string {
	return "unit:" + unitID.String()
}

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
