package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// District boundary dataset, tried in order: archive then raw GeoJSON.
	DistrictArchivePath string
	DistrictGeoJSONPath string

	// External CEP fallback (BrasilAPI) configuration.
	FallbackBaseURL   string
	FallbackEnabled   bool
	FallbackTimeout   time.Duration
	FallbackCacheSize int

	// Report window store configuration.
	ReportWindow   time.Duration
	SubmitInterval time.Duration

	// Optional Kafka publishing of accepted reports.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fallbackTimeout, err := parseDuration("CEP_FALLBACK_TIMEOUT", "4s")
	if err != nil {
		return nil, err
	}
	reportWindow, err := parseDuration("REPORT_WINDOW", "1h")
	if err != nil {
		return nil, err
	}
	submitInterval, err := parseDuration("SUBMIT_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DistrictArchivePath: envOrDefault("DISTRICT_ARCHIVE_PATH", "data/districts.geojson.gz"),
		DistrictGeoJSONPath: envOrDefault("DISTRICT_GEOJSON_PATH", "data/districts.geojson"),

		FallbackBaseURL:   envOrDefault("CEP_FALLBACK_BASE_URL", "https://brasilapi.com.br"),
		FallbackEnabled:   envOrDefault("CEP_FALLBACK_ENABLED", "true") == "true",
		FallbackTimeout:   fallbackTimeout,
		FallbackCacheSize: parsePositiveInt("CEP_FALLBACK_CACHE_SIZE", 1000),

		ReportWindow:   reportWindow,
		SubmitInterval: submitInterval,

		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "outage-reports"),
		KafkaEnabled: kafkaEnabled,
	}

	if cfg.ReportWindow <= 0 {
		return nil, errors.New("REPORT_WINDOW must be positive")
	}
	if cfg.DistrictArchivePath == "" && cfg.DistrictGeoJSONPath == "" {
		return nil, errors.New("at least one district dataset path is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is not set")
	}
	if cfg.FallbackEnabled && cfg.FallbackBaseURL == "" {
		return nil, errors.New("CEP_FALLBACK_ENABLED is true but CEP_FALLBACK_BASE_URL is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
