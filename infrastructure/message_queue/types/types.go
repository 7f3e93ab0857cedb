package mq_types

import (
	"context"
	"time"
)

type TaskQueueBroker interface {
	// Start runs the worker until ctx is cancelled.
	Start(ctx context.Context) error
	Enqueue(task QueueTask) error
	Close() error
}

type Queues string

type QueueTask struct {
	Name      Queues
	Payload   []byte
	Priority  TaskPriority
	ProcessIn time.Duration // seconds
	TimeOut   time.Duration // seconds
	MaxRetry  int
}

type TaskPriority string

const (
	Low    TaskPriority = "low"
	Medium TaskPriority = "medium"
	High   TaskPriority = "high"
)
