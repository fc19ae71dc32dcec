package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Catalog file overriding the built-in stage, overlay and event tables.
	CatalogPath string

	// Upstream feeds.
	GageIDs           []string
	USGSBaseURL       string
	NWSBaseURL        string
	NWSZone           string
	NWSUserAgent      string
	EventsCSVURL      string
	HTTPClientTimeout time.Duration

	// Scheduling.
	GagePollInterval     time.Duration
	AlertPollInterval    time.Duration
	EventRefreshInterval time.Duration
	GageRetryAttempts    int

	// Mapbox address search.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Stage transition publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Gage snapshot cache.
	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisSnapshotTTL time.Duration

	// Reading and transition history.
	StoreEnabled bool
	StoreDriver  string
	StoreDSN     string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CatalogPath: os.Getenv("CATALOG_PATH"),

		GageIDs:      parseList(sharedcfg.EnvOrDefault("GAGE_IDS", "15052500,1505248590")),
		USGSBaseURL:  sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://waterservices.usgs.gov"),
		NWSBaseURL:   sharedcfg.EnvOrDefault("NWS_BASE_URL", "https://api.weather.gov"),
		NWSZone:      sharedcfg.EnvOrDefault("NWS_ZONE", "AKZ025"),
		NWSUserAgent: sharedcfg.EnvOrDefault("NWS_USER_AGENT", "JuneauFloodApp (glof-monitor)"),
		EventsCSVURL: sharedcfg.EnvOrDefault("EVENTS_CSV_URL", "https://juneauflood-basin-images.s3.us-west-2.amazonaws.com/FloodEvents.csv"),

		MapboxToken: os.Getenv("MAPBOX_TOKEN"),

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "glof-stage-transitions"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		StoreDriver: sharedcfg.EnvOrDefault("STORE_DRIVER", "sqlite"),
		StoreDSN:    os.Getenv("STORE_DSN"),
	}

	if cfg.HTTPClientTimeout, err = parseDuration("HTTP_CLIENT_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.GagePollInterval, err = parseDuration("GAGE_POLL_INTERVAL", "60s"); err != nil {
		return nil, err
	}
	if cfg.AlertPollInterval, err = parseDuration("ALERT_POLL_INTERVAL", "10m"); err != nil {
		return nil, err
	}
	if cfg.EventRefreshInterval, err = parseDuration("EVENT_REFRESH_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.MapboxTimeout, err = parseDuration("MAPBOX_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.RedisSnapshotTTL, err = parseDuration("REDIS_SNAPSHOT_TTL", "10m"); err != nil {
		return nil, err
	}
	if cfg.GageRetryAttempts, err = parsePositiveInt("GAGE_RETRY_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.MapboxCacheSize, err = parsePositiveInt("MAPBOX_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = parseNonNegativeInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.MapboxEnabled = flag("MAPBOX_ENABLED", cfg.MapboxToken != "")
	cfg.KafkaEnabled = flag("KAFKA_ENABLED", false)
	cfg.RedisEnabled = flag("REDIS_ENABLED", cfg.RedisAddr != "")
	cfg.StoreEnabled = flag("STORE_ENABLED", cfg.StoreDSN != "")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.GageIDs) == 0 {
		return errors.New("GAGE_IDS is required")
	}
	if c.NWSZone == "" {
		return errors.New("NWS_ZONE is required")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if c.RedisEnabled && c.RedisAddr == "" {
		return errors.New("REDIS_ENABLED is true but REDIS_ADDR is not set")
	}
	if c.StoreEnabled {
		if c.StoreDriver != "sqlite" && c.StoreDriver != "mysql" {
			return errors.New("STORE_DRIVER must be sqlite or mysql")
		}
		if c.StoreDSN == "" {
			return errors.New("STORE_ENABLED is true but STORE_DSN is not set")
		}
	}
	return nil
}

func flag(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key + ": must be a positive integer")
	}
	return n, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + key + ": must be a non-negative integer")
	}
	return n, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
