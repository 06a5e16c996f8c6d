package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DBUrl             string
	JWTSecret         string
	AppEnv            string
	RedisURL          string
	PushShards        int
	PushSendBuffer    int
	WorkerConcurrency int
	RollbarToken      string
	BuildVersion      string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		DBUrl:             getEnv("DB_URL", ""),
		JWTSecret:         jwtSecret,
		AppEnv:            normalizeEnv(getEnv("APP_ENV", "production")),
		RedisURL:          strings.TrimSpace(getEnv("REDIS_URL", "")),
		PushShards:        getEnvInt("PUSH_SHARDS", 32),
		PushSendBuffer:    getEnvInt("PUSH_SEND_BUFFER", 32),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
		RollbarToken:      getEnv("ROLLBAR_TOKEN", ""),
		BuildVersion:      getEnv("BUILD_VERSION", "dev"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

// RedisEnabled reports whether cross-instance fan-out and the notification
// queue should run against Redis.
func (c *Config) RedisEnabled() bool {
	return c != nil && c.RedisURL != ""
}

func (c *Config) Development() bool {
	return c != nil && c.AppEnv == "development"
}
