package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultProviders is the provider priority when PROVIDERS is unset
	DefaultProviders = "yahoo_finance,alpha_vantage"

	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	LeaseBackendLocal = "local"
	LeaseBackendRedis = "redis"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	PGURL        string `env:"PG_URL"`
	StoreBackend string `env:"STORE_BACKEND,default=postgres"`
	AVKey        string `env:"AV_KEY"`
	Port         string `env:"PORT,default=8080"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`
	LogFormat    string `env:"LOG_FORMAT,default=text"`

	Providers       string  `env:"PROVIDERS"`
	YahooBaseURL    string  `env:"YAHOO_BASE_URL"`
	AVBaseURL       string  `env:"AV_BASE_URL"`
	YahooRatePerSec float64 `env:"YAHOO_RATE_PER_SEC,default=2"`
	AVRatePerMin    int     `env:"AV_RATE_PER_MIN,default=5"`

	MinHistoryDays        int           `env:"MIN_HISTORY_DAYS,default=200"`
	HistoryYears          int           `env:"HISTORY_YEARS,default=10"`
	FetchMaxAttempts      int           `env:"FETCH_MAX_ATTEMPTS,default=3"`
	BackoffInitial        time.Duration `env:"BACKOFF_INITIAL,default=500ms"`
	BackoffMax            time.Duration `env:"BACKOFF_MAX,default=10s"`
	PendingRetryDelay     time.Duration `env:"PENDING_RETRY_DELAY,default=1h"`
	FailureAlertThreshold int           `env:"FAILURE_ALERT_THRESHOLD,default=3"`

	Workers            int    `env:"WORKERS,default=4"`
	QueueSize          int    `env:"QUEUE_SIZE,default=256"`
	RefreshSchedule    string `env:"REFRESH_SCHEDULE,default=@every 8h"`
	PendingSchedule    string `env:"PENDING_SCHEDULE,default=@every 15m"`
	PredictionSchedule string `env:"PREDICTION_SCHEDULE,default=@daily"`

	MaxModelAge       time.Duration `env:"MAX_MODEL_AGE,default=168h"`
	TrainingWindow    int           `env:"TRAINING_WINDOW,default=750"`
	PredictionHorizon int           `env:"PREDICTION_HORIZON,default=5"`

	LeaseBackend  string        `env:"LEASE_BACKEND,default=local"`
	RedisAddr     string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	LeaseTTL      time.Duration `env:"LEASE_TTL,default=10m"`

	SeriesCacheTTL time.Duration `env:"SERIES_CACHE_TTL,default=5m"`
}

// Load reads configuration from environment variables. A .env file in the working
// directory is read first; variables already set in the shell take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded")
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the combinations envdecode cannot express
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.PGURL == "" {
			return fmt.Errorf("PG_URL environment variable is required when STORE_BACKEND=%s", StoreBackendPostgres)
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendMemory, c.StoreBackend)
	}

	switch c.LeaseBackend {
	case LeaseBackendLocal:
	case LeaseBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when LEASE_BACKEND=%s", LeaseBackendRedis)
		}
	default:
		return fmt.Errorf("LEASE_BACKEND must be %q or %q, got %q", LeaseBackendLocal, LeaseBackendRedis, c.LeaseBackend)
	}

	providers := c.ProviderList()
	if len(providers) == 0 {
		return errors.New("PROVIDERS must name at least one provider")
	}
	for _, p := range providers {
		if p != "yahoo_finance" && p != "alpha_vantage" {
			return fmt.Errorf("unknown provider %q in PROVIDERS", p)
		}
	}

	if c.MinHistoryDays <= 0 || c.HistoryYears <= 0 {
		return errors.New("MIN_HISTORY_DAYS and HISTORY_YEARS must be positive")
	}
	if c.Workers <= 0 || c.QueueSize <= 0 {
		return errors.New("WORKERS and QUEUE_SIZE must be positive")
	}
	if c.PredictionHorizon <= 0 {
		return errors.New("PREDICTION_HORIZON must be positive")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// ProviderList returns PROVIDERS as an ordered, deduplicated list of source names
func (c *Config) ProviderList() []string {
	raw := c.Providers
	if strings.TrimSpace(raw) == "" {
		raw = DefaultProviders
	}
	var out []string
	seen := map[string]bool{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
