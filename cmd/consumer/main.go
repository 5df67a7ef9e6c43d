package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/config"
	"github.com/example/ev-rescue/internal/events"
	"github.com/example/ev-rescue/internal/logging"
	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/storage"
	"github.com/example/ev-rescue/internal/workflow"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total stage event messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

// stageCountsKey holds how many sessions entered each stage.
const stageCountsKey = "rescue:stage_counts"

func main() {
	_ = config.LoadDotEnv()
	cfg, err := config.LoadConsumerConfig()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := logging.NewLogger("ev-rescue-consumer", cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	radapter := &redisAdapter{c: rc}

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			// readiness: check redis connectivity
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", zap.String("addr", cfg.MetricsAddr))
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", zap.String("topic", cfg.KafkaTopic), zap.Strings("brokers", cfg.KafkaBrokers), zap.String("group", cfg.KafkaGroup))

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", zap.Error(err), zap.Duration("backoff", backoff))
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		msgsConsumed.Inc()

		ev, err := events.Decode(m.Value)
		if err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid message", zap.Error(err))
			continue
		}

		if err := updateRedisWithRetry(ctx, radapter, cfg.RedisStatsKey, ev, 3, 200*time.Millisecond); err != nil {
			redisErrors.Inc()
			logger.Warn("redis update failed", zap.String("session_id", ev.SessionID), zap.Error(err))
			continue
		}
		redisUpdates.Inc()
	}
}

// RedisUpdater defines the small subset of redis operations we need for tests and production.
type RedisUpdater interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	return r.c.HIncrBy(ctx, key, field, incr).Err()
}

// updateRedisWithRetry counts the stage entry and, for rescues a driver
// finished, the dashboard counters, retrying each step with backoff.
func updateRedisWithRetry(ctx context.Context, rc RedisUpdater, statsKey string, ev models.StageEvent, attempts int, delay time.Duration) error {
	steps := []struct{ key, field string }{{stageCountsKey, ev.To}}
	if ev.To == string(workflow.StageThankYou) && ev.Role == string(workflow.RoleDriver) {
		steps = append(steps,
			struct{ key, field string }{statsKey, storage.FieldCompletedToday},
			struct{ key, field string }{statsKey, storage.FieldTotalRescues},
		)
	}
	for _, st := range steps {
		if err := withRetry(ctx, attempts, delay, func() error {
			return rc.HIncrBy(ctx, st.key, st.field, 1)
		}); err != nil {
			return err
		}
	}
	return nil
}

func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
