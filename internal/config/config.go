package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

const (
	maxGeocoderConcurrency = 64
	defaultYandexBaseURL   = "https://geocode-maps.yandex.ru/1.x"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DispatchInterval time.Duration
	DatabaseURL      string

	KafkaBrokers       []string
	KafkaRankingsTopic string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Geocoder configuration.
	GeocoderAPIKey      string
	GeocoderEnabled     bool
	GeocoderBaseURL     string
	GeocoderTimeout     time.Duration
	GeocoderConcurrency int

	GeocacheLocalSize   int
	GeocacheLocalTTL    time.Duration
	GeocacheNegativeTTL time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	dispatchInterval, err := parsePositiveDuration("DISPATCH_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parsePositiveDuration("GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	localTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("GEOCACHE_LOCAL_TTL", "1m"))
	if err != nil || localTTL < 0 {
		return nil, errors.New("invalid GEOCACHE_LOCAL_TTL")
	}
	negativeTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("GEOCACHE_NEGATIVE_TTL", "0s"))
	if err != nil || negativeTTL < 0 {
		return nil, errors.New("invalid GEOCACHE_NEGATIVE_TTL")
	}

	concurrency, err := parseInt("GEOCODER_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	if concurrency < 1 || concurrency > maxGeocoderConcurrency {
		return nil, fmt.Errorf("GEOCODER_CONCURRENCY must be between 1 and %d", maxGeocoderConcurrency)
	}
	localSize, err := parseInt("GEOCACHE_LOCAL_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	if localSize < 0 {
		return nil, errors.New("GEOCACHE_LOCAL_SIZE must not be negative")
	}
	redisDB, err := parseInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	apiKey := os.Getenv("GEOCODER_API_KEY")
	enabled := apiKey != ""
	if v := os.Getenv("GEOCODER_ENABLED"); v != "" {
		enabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DispatchInterval: dispatchInterval,
		DatabaseURL:      sharedcfg.EnvOrDefault("DATABASE_URL", "postgres://localhost:5432/foodcart?sslmode=disable"),

		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRankingsTopic: sharedcfg.EnvOrDefault("KAFKA_RANKINGS_TOPIC", "order-rankings"),

		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		GeocoderAPIKey:      apiKey,
		GeocoderEnabled:     enabled,
		GeocoderBaseURL:     sharedcfg.EnvOrDefault("GEOCODER_BASE_URL", defaultYandexBaseURL),
		GeocoderTimeout:     geocoderTimeout,
		GeocoderConcurrency: concurrency,

		GeocacheLocalSize:   localSize,
		GeocacheLocalTTL:    localTTL,
		GeocacheNegativeTTL: negativeTTL,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaRankingsTopic == "" {
		return nil, errors.New("KAFKA_RANKINGS_TOPIC is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.GeocoderEnabled && cfg.GeocoderAPIKey == "" {
		return nil, errors.New("GEOCODER_ENABLED is true but GEOCODER_API_KEY is not set")
	}

	return cfg, nil
}

// LoadDotEnv reads variables from an env file when it exists. Variables
// already present in the environment take precedence.
func LoadDotEnv(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("load %s: %w", path, err)
	}
	return true, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
