package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/example/ev-rescue/internal/workflow"
)

// ServerConfig captures all tunable parameters for the HTTP process.
// Values are loaded from environment variables (and an optional .env file)
// with defaults that run the whole demo in memory.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string
	RedisStatsKey string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	FixturesPath string

	SessionTTL   time.Duration
	SessionSweep time.Duration
	RateLimit    string
	CORSOrigins  []string
	TrustProxy   bool

	Workflow workflow.Timings

	DefaultSpeedMps float64
	MatcherTopN     int

	LogLevel      string
	RunMigrations bool
}

// ConsumerConfig configures the stage event consumer.
type ConsumerConfig struct {
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RedisAddr     string
	RedisPassword string
	RedisStatsKey string
	MetricsAddr   string
	LogLevel      string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "rescue_drivers_geo",
		RedisStatsKey:   "rescue:stats",
		KafkaTopic:      "rescue-stage-events",
		SessionTTL:      30 * time.Minute,
		SessionSweep:    time.Minute,
		RateLimit:       "20-M",
		CORSOrigins:     []string{"*"},
		Workflow:        workflow.DefaultTimings(),
		DefaultSpeedMps: 10,
		MatcherTopN:     8,
		LogLevel:        "info",
	}
}

func defaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		KafkaBrokers:  []string{"localhost:9092"},
		KafkaTopic:    "rescue-stage-events",
		KafkaGroup:    "ev-rescue-consumer",
		RedisAddr:     "localhost:6379",
		RedisStatsKey: "rescue:stats",
		MetricsAddr:   ":2112",
		LogLevel:      "info",
	}
}

// LoadDotEnv loads .env when present. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	setStringFromEnv(&cfg.RedisStatsKey, "REDIS_STATS_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	setStringFromEnv(&cfg.FixturesPath, "FIXTURES_PATH")

	setDurationFromEnv(&cfg.SessionTTL, "SESSION_TTL", &errs)
	setDurationFromEnv(&cfg.SessionSweep, "SESSION_SWEEP", &errs)
	setStringFromEnv(&cfg.RateLimit, "RATE_LIMIT")
	setBoolFromEnv(&cfg.TrustProxy, "TRUST_PROXY", &errs)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitAndTrim(origins)
	}

	w := &cfg.Workflow
	setDurationFromEnv(&w.Search, "WORKFLOW_SEARCH_DELAY", &errs)
	setDurationFromEnv(&w.Dispatch, "WORKFLOW_DISPATCH_DELAY", &errs)
	setDurationFromEnv(&w.Travel, "WORKFLOW_TRAVEL_DELAY", &errs)
	setDurationFromEnv(&w.Arrival, "WORKFLOW_ARRIVAL_DELAY", &errs)
	setDurationFromEnv(&w.Wrapup, "WORKFLOW_WRAPUP_DELAY", &errs)
	setDurationFromEnv(&w.ChargeTick, "CHARGE_TICK", &errs)
	setFloatFromEnv(&w.ChargeRate, "CHARGE_RATE", &errs)
	setFloatFromEnv(&w.ChargeTarget, "CHARGE_TARGET", &errs)
	setDurationFromEnv(&w.ChargeCompleteDelay, "CHARGE_COMPLETE_DELAY", &errs)
	setIntFromEnv(&w.RouteSteps, "ROUTE_STEPS", &errs)
	setDurationFromEnv(&w.RouteStepInterval, "ROUTE_STEP_INTERVAL", &errs)
	setDurationFromEnv(&w.PaymentProcessing, "PAYMENT_PROCESSING", &errs)
	setDurationFromEnv(&w.PaymentSuccess, "PAYMENT_SUCCESS", &errs)

	setFloatFromEnv(&cfg.DefaultSpeedMps, "MATCHER_DEFAULT_SPEED_MPS", &errs)
	setIntFromEnv(&cfg.MatcherTopN, "MATCHER_TOP_N", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	setBoolFromEnv(&cfg.RunMigrations, "MIGRATE", &errs)

	if cfg.MatcherTopN <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_TOP_N must be > 0"))
	}
	if w.ChargeRate <= 0 {
		errs = append(errs, fmt.Errorf("CHARGE_RATE must be > 0"))
	}
	if w.ChargeTarget <= 0 || w.ChargeTarget > 100 {
		errs = append(errs, fmt.Errorf("CHARGE_TARGET must be in (0, 100]"))
	}
	if w.RouteSteps <= 0 {
		errs = append(errs, fmt.Errorf("ROUTE_STEPS must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := defaultConsumerConfig()
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisStatsKey, "REDIS_STATS_KEY")
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return cfg, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	return cfg, nil
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := cast.ToIntE(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := cast.ToBoolE(strings.ToLower(v))
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
