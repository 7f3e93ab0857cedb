package connection

import (
	"gateman.io/infrastructure/database/connection/cache"
)

func ConnectToDatabase() error {
	_, err := cache.GetInstance()
	return err
}
