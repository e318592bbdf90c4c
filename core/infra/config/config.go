package config

import "os"

const (
	defaultRedisURL    = "redis://localhost:6379"
	defaultNATSURL     = "nats://localhost:4222"
	defaultHTTPAddr    = ":8090"
	defaultMetricsAddr = ":9094"
	defaultAPIBaseURL  = "http://localhost:8090"

	envRedisURL    = "REDIS_URL"
	envNATSURL     = "NATS_URL"
	envHTTPAddr    = "CONSOLE_HTTP_ADDR"
	envMetricsAddr = "CONSOLE_METRICS_ADDR"
	envSeedPath    = "CONSOLE_SEED_PATH"
	envAPIBaseURL  = "RELAYDECK_API_URL"
	envAPIKey      = "RELAYDECK_API_KEY"
)

// Config holds runtime configuration for the console server and CLI.
type Config struct {
	RedisURL    string
	NatsURL     string
	HTTPAddr    string
	MetricsAddr string
	SeedPath    string
	APIBaseURL  string
	APIKey      string
}

// Load returns configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		RedisURL:    envOr(envRedisURL, defaultRedisURL),
		NatsURL:     envOr(envNATSURL, defaultNATSURL),
		HTTPAddr:    envOr(envHTTPAddr, defaultHTTPAddr),
		MetricsAddr: envOr(envMetricsAddr, defaultMetricsAddr),
		SeedPath:    os.Getenv(envSeedPath),
		APIBaseURL:  envOr(envAPIBaseURL, defaultAPIBaseURL),
		APIKey:      os.Getenv(envAPIKey),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
