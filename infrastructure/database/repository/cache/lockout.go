package cache

import (
	"context"
	"fmt"
	"time"
)

const defaultLockoutPrefix = "liveness"

// LockoutStore keeps spoof lockouts and strike counters per subject.
type LockoutStore struct {
	Repo   *RedisRepository
	Prefix string
}

func NewLockoutStore(repo *RedisRepository) *LockoutStore {
	return &LockoutStore{Repo: repo, Prefix: defaultLockoutPrefix}
}

func (l *LockoutStore) lockKey(subject string) string {
	return fmt.Sprintf("%s:lockout:%s", l.prefix(), subject)
}

func (l *LockoutStore) strikeKey(subject string) string {
	return fmt.Sprintf("%s:strikes:%s", l.prefix(), subject)
}

func (l *LockoutStore) prefix() string {
	if l.Prefix == "" {
		return defaultLockoutPrefix
	}
	return l.Prefix
}

// LockedFor reports the remaining lockout, zero when the subject is free.
func (l *LockoutStore) LockedFor(ctx context.Context, subject string) time.Duration {
	if l.Repo.FindOne(ctx, l.lockKey(subject)) == nil {
		return 0
	}
	return l.Repo.TimeToLive(ctx, l.lockKey(subject))
}

func (l *LockoutStore) Lock(ctx context.Context, subject string, reason string, ttl time.Duration) bool {
	return l.Repo.CreateEntry(ctx, l.lockKey(subject), reason, ttl)
}

// AddStrike counts a failure inside window and returns the running total.
func (l *LockoutStore) AddStrike(ctx context.Context, subject string, window time.Duration) int64 {
	return l.Repo.IncrementField(ctx, l.strikeKey(subject), 1, window)
}

func (l *LockoutStore) ClearStrikes(ctx context.Context, subject string) bool {
	return l.Repo.DeleteOne(ctx, l.strikeKey(subject))
}
