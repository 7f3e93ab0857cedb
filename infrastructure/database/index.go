package database

import "gateman.io/infrastructure/database/connection"

func SetUpDatabase() error {
	return connection.ConnectToDatabase()
}
