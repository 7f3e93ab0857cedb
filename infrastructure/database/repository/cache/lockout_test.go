package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// unreachable points at a port nothing listens on so every command fails fast.
func unreachable() *RedisRepository {
	return &RedisRepository{Client: redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})}
}

func TestLockoutKeys(t *testing.T) {
	tests := []struct {
		name   string
		store  *LockoutStore
		lock   string
		strike string
	}{
		{name: "default prefix", store: NewLockoutStore(nil), lock: "liveness:lockout:user-1", strike: "liveness:strikes:user-1"},
		{name: "empty prefix falls back", store: &LockoutStore{}, lock: "liveness:lockout:user-1", strike: "liveness:strikes:user-1"},
		{name: "custom prefix", store: &LockoutStore{Prefix: "kyc"}, lock: "kyc:lockout:user-1", strike: "kyc:strikes:user-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.lock, tt.store.lockKey("user-1"))
			assert.Equal(t, tt.strike, tt.store.strikeKey("user-1"))
		})
	}
}

func TestLockoutStoreFailsOpenWithoutRedis(t *testing.T) {
	repo := unreachable()
	t.Cleanup(func() { repo.Client.Close() })
	store := NewLockoutStore(repo)
	ctx := context.Background()

	assert.Zero(t, store.LockedFor(ctx, "user-1"))
	assert.False(t, store.Lock(ctx, "user-1", "high_confidence_spoof", time.Minute))
	assert.Zero(t, store.AddStrike(ctx, "user-1", time.Hour))
	assert.False(t, store.ClearStrikes(ctx, "user-1"))
}
