package messagequeue

import (
	"context"

	"gateman.io/infrastructure/database/connection/cache"
	"gateman.io/infrastructure/env"
	"gateman.io/infrastructure/message_queue/asynq"
	mq_types "gateman.io/infrastructure/message_queue/types"
)

var TaskQueue mq_types.TaskQueueBroker

// SetUpQueue builds the asynq broker from REDIS_* environment variables.
func SetUpQueue() (mq_types.TaskQueueBroker, error) {
	var cfg cache.RedisConfig
	if err := env.ParseInto(&cfg); err != nil {
		return nil, err
	}
	TaskQueue = &asynq.AsynqBroker{Redis: cfg}
	return TaskQueue, nil
}

func StartQueue(ctx context.Context) error {
	if TaskQueue == nil {
		if _, err := SetUpQueue(); err != nil {
			return err
		}
	}
	return TaskQueue.Start(ctx)
}
