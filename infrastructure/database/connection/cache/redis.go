package cache

import (
	"context"
	"sync"
	"time"

	"gateman.io/infrastructure/env"
	"gateman.io/infrastructure/logger"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
}

type RedisClient struct {
	Client *redis.Client
}

var (
	instance *RedisClient
	once     sync.Once
	connErr  error
)

// GetInstance lazily connects to redis using REDIS_* environment variables.
func GetInstance() (*RedisClient, error) {
	once.Do(func() {
		var cfg RedisConfig
		if connErr = env.ParseInto(&cfg); connErr != nil {
			return
		}
		instance = &RedisClient{Client: NewClient(cfg)}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := instance.Client.Ping(ctx).Err(); err != nil {
			logger.Warning("redis ping failed", logger.LoggerOptions{
				Key:  "error",
				Data: err,
			}, logger.LoggerOptions{
				Key:  "addr",
				Data: cfg.Addr,
			})
			return
		}
		logger.Info("connected to redis successfully")
	})
	return instance, connErr
}

func NewClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
