package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// OrderLocker serialises status transitions of one order across instances.
// The database transaction alone keeps confirmation exactly-once; the lock
// turns a concurrent attempt into a fast conflict instead of a wait on the
// row lock.
type OrderLocker interface {
	Lock(ctx context.Context, orderID string) (unlock func(), err error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// RedisOrderLocker holds `lock:purchase-order:<id>` in Redis while a
// transition runs.
type RedisOrderLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRedisOrderLocker(client redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *RedisOrderLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisOrderLocker{locker: redislock.New(client), ttl: ttl, logger: logger}
}

func orderLockKey(orderID string) string {
	return "lock:purchase-order:" + orderID
}

func (l *RedisOrderLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	lock, err := l.locker.Obtain(ctx, orderLockKey(orderID), l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("purchase order %s is being updated, retry later: %w", orderID, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain order lock: %w", err)
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.WithField("order_id", orderID).WithError(err).Warn("order lock release failed")
		}
	}, nil
}
