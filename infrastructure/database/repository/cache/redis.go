package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	redisClient "gateman.io/infrastructure/database/connection/cache"
	"gateman.io/infrastructure/logger"
)

type RedisRepository struct {
	Client *redis.Client
}

func (redisRepo *RedisRepository) preRequest() bool {
	if redisRepo.Client == nil {
		client, err := redisClient.GetInstance()
		if err != nil || client == nil {
			logger.Error("redis repository initialisation failed", logger.LoggerOptions{
				Key:  "error",
				Data: err,
			})
			return false
		}
		redisRepo.Client = client.Client
		logger.Info("redis repository initialisation complete")
	}
	return true
}

func (redisRepo *RedisRepository) CreateEntry(ctx context.Context, key string, payload interface{}, ttl time.Duration) bool {
	if !redisRepo.preRequest() {
		return false
	}
	_, err := redisRepo.Client.Set(ctx, key, payload, ttl).Result()
	if err != nil {
		logger.Error("redis error occured while running CreateEntry", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		}, logger.LoggerOptions{
			Key:  "key",
			Data: key,
		})
		return false
	}

	logger.Debug("redis CreateEntry completed")
	return true
}

func (redisRepo *RedisRepository) FindOne(ctx context.Context, key string) *string {
	if !redisRepo.preRequest() {
		return nil
	}
	result, err := redisRepo.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		logger.Error("redis error occured while running FindOne", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		}, logger.LoggerOptions{
			Key:  "key",
			Data: key,
		})
		return nil
	}

	logger.Debug("redis FindOne completed")
	return &result
}

// TimeToLive returns 0 for missing keys and keys without expiry.
func (redisRepo *RedisRepository) TimeToLive(ctx context.Context, key string) time.Duration {
	if !redisRepo.preRequest() {
		return 0
	}
	ttl, err := redisRepo.Client.TTL(ctx, key).Result()
	if err != nil {
		logger.Error("redis error occured while running TimeToLive", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		}, logger.LoggerOptions{
			Key:  "key",
			Data: key,
		})
		return 0
	}
	if ttl < 0 {
		return 0
	}
	return ttl
}

func (redisRepo *RedisRepository) DeleteOne(ctx context.Context, key string) bool {
	if !redisRepo.preRequest() {
		return false
	}
	result, err := redisRepo.Client.Del(ctx, key).Result()
	if err != nil {
		logger.Error("redis error occured while running DeleteOne", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		}, logger.LoggerOptions{
			Key:  "key",
			Data: key,
		})
		return false
	}
	if int(result) != 1 {
		return false
	}

	logger.Debug("redis DeleteOne completed")
	return true
}

// IncrementField adds amount to key. A positive ttl is set in the same transaction when
// the key has no expiry yet, so a counter can never outlive its window.
func (redisRepo *RedisRepository) IncrementField(ctx context.Context, key string, amount int64, ttl time.Duration) int64 {
	if !redisRepo.preRequest() {
		return 0
	}
	var incr *redis.IntCmd
	_, err := redisRepo.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrBy(ctx, key, amount)
		if ttl > 0 {
			pipe.ExpireNX(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		logger.Error("redis error occured while running IncrementField", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		}, logger.LoggerOptions{
			Key:  "key",
			Data: key,
		})
		return 0
	}
	logger.Debug("redis IncrementField completed")
	return incr.Val()
}
