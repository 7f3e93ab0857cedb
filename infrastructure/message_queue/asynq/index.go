package asynq

import (
	"context"
	"fmt"
	"time"

	"gateman.io/infrastructure/database/connection/cache"
	"gateman.io/infrastructure/logger"
	queue_tasks "gateman.io/infrastructure/message_queue/tasks"
	mq_types "gateman.io/infrastructure/message_queue/types"
	"github.com/hibiken/asynq"
)

const defaultMaxRetry = 10

type AsynqBroker struct {
	Client *asynq.Client
	Redis  cache.RedisConfig
}

func (aq *AsynqBroker) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     aq.Redis.Addr,
		Password: aq.Redis.Password,
		DB:       aq.Redis.DB,
	}
}

func (aq *AsynqBroker) client() *asynq.Client {
	if aq.Client == nil {
		aq.Client = asynq.NewClient(aq.redisOpt())
	}
	return aq.Client
}

// Start runs the worker until ctx is cancelled, then waits for in-flight tasks.
func (aq *AsynqBroker) Start(ctx context.Context) error {
	srv := asynq.NewServer(
		aq.redisOpt(),
		asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				string(mq_types.High):   7,
				string(mq_types.Medium): 2,
				string(mq_types.Low):    1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(string(queue_tasks.HandleLivenessAuditTaskName), queue_tasks.HandleLivenessAuditTask)

	logger.Info("task queue worker starting")
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start task queue worker: %w", err)
	}
	<-ctx.Done()
	logger.Info("task queue worker stopping")
	srv.Shutdown()
	return nil
}

func (aq *AsynqBroker) Enqueue(task mq_types.QueueTask) error {
	if task.TimeOut == 0 {
		task.TimeOut = 60
	}
	if task.MaxRetry == 0 {
		task.MaxRetry = defaultMaxRetry
	}
	if task.Priority == "" {
		task.Priority = mq_types.Medium
	}
	info, err := aq.client().Enqueue(asynq.NewTask(string(task.Name), task.Payload),
		asynq.ProcessIn(task.ProcessIn*time.Second),
		asynq.MaxRetry(task.MaxRetry),
		asynq.Timeout(task.TimeOut*time.Second),
		asynq.Queue(string(task.Priority)))
	if err != nil {
		logger.Error("failed to enqueue task", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		}, logger.LoggerOptions{
			Key:  "task",
			Data: task.Name,
		})
		return fmt.Errorf("enqueue %s: %w", task.Name, err)
	}
	logger.Debug("task enqueued", logger.LoggerOptions{
		Key:  "id",
		Data: info.ID,
	}, logger.LoggerOptions{
		Key:  "queue",
		Data: info.Queue,
	})
	return nil
}

func (aq *AsynqBroker) Close() error {
	if aq.Client == nil {
		return nil
	}
	return aq.Client.Close()
}
