// Package cli hosts the tally command tree and the bootstrap helpers
// shared by the daemons in cmd/.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"tally/internal/config"
	"tally/internal/log"
)

// LoadEnvFile loads the .env file for local development. Errors are
// ignored; deployments configure through the environment.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger installs a text handler at the given level as the process
// default logger and returns the component-tagged wrapper.
func SetupLogger(level, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads the layered configuration, exiting the
// process when it cannot be loaded or does not validate.
func LoadAndValidateConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", log.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}
