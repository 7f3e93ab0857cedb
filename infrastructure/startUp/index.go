package startup

import (
	"gateman.io/infrastructure/database"
	"gateman.io/infrastructure/logger"
	messagequeue "gateman.io/infrastructure/message_queue"
)

// Used to start services such as loggers, caches and queues.
func StartServices(withBackends bool) error {
	logger.InitializeLogger()
	if !withBackends {
		return nil
	}
	if err := database.SetUpDatabase(); err != nil {
		return err
	}
	_, err := messagequeue.SetUpQueue()
	return err
}

// Used to clean up after services that have been shutdown.
func CleanUpServices() {
	if messagequeue.TaskQueue != nil {
		messagequeue.TaskQueue.Close()
	}
	logger.Sync()
}
