package env

import (
	"fmt"

	"gateman.io/infrastructure/logger"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file into the process environment when one exists.
func LoadEnv(files ...string) {
	err := godotenv.Load(files...)
	if err != nil {
		logger.Info("no .env file loaded, using process environment")
	}
}

// ParseInto overrides fields of target from environment variables using its env tags.
// Fields without a matching variable keep their current value.
func ParseInto(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
