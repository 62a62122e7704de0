package presenced

import (
	"encoding/base64"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ConfigLoader interface {
	Load() (*Config, error)
}

// EnvConfigLoader loads the configuration from environment variables, with a
// .env file as the source when present. The SECRET environment variable is
// expected to be a base64-encoded string; ALLOWED_ORIGINS is a
// comma-separated list.
type EnvConfigLoader struct {
}

func (l *EnvConfigLoader) Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	port, _ := strconv.Atoi(getEnv("PORT"))

	secret, err := base64.StdEncoding.DecodeString(getEnv("SECRET"))
	if err != nil {
		return nil, errors.New("invalid secret value")
	}

	config := &Config{
		Port:           port,
		Hostname:       getEnv("HOSTNAME"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS"), ","),
	}
	config.Auth.Secret = secret
	config.SQLite.File = getEnv("SQLITE_FILE")
	config.SQLite.Migrations = getEnv("MIGRATION_DIR")
	config.Redis.Addr = getEnv("REDIS_ADDR")
	config.NATS.URL = getEnv("NATS_URL")

	if d, err := time.ParseDuration(getEnv("PRESENCE_DEBOUNCE")); err == nil {
		config.Presence.Debounce = d
	}
	if d, err := time.ParseDuration(getEnv("TYPING_TTL")); err == nil {
		config.Typing.TTL = d
	}

	return config, nil
}

// Utility function to get an environment variable with a default value
func getEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return ""
	}
	return value
}
