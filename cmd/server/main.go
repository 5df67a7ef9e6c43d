package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/config"
	"github.com/example/ev-rescue/internal/dispatch"
	"github.com/example/ev-rescue/internal/events"
	"github.com/example/ev-rescue/internal/geo"
	httpapi "github.com/example/ev-rescue/internal/http"
	"github.com/example/ev-rescue/internal/logging"
	"github.com/example/ev-rescue/internal/matcher"
	"github.com/example/ev-rescue/internal/mockdata"
	"github.com/example/ev-rescue/internal/observability"
	"github.com/example/ev-rescue/internal/sessions"
	"github.com/example/ev-rescue/internal/storage"
	"github.com/example/ev-rescue/internal/workflow"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	cfg, err := config.LoadServerConfig()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := logging.NewLogger("ev-rescue", cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.ServerConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fixtures, err := mockdata.Load(cfg.FixturesPath)
	if err != nil {
		return err
	}

	// env-driven wiring; every external system is optional
	var rc *redis.Client
	if cfg.RedisAddr != "" {
		rc = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
	}

	var g geo.Geo = geo.NewIndex()
	var stats storage.Stats = storage.NewMemoryStats(fixtures.DashboardSeed())
	if rc != nil {
		g = geo.NewRedisGeo(rc, cfg.RedisGeoKey, 0)
		rs := storage.NewRedisStats(rc, cfg.RedisStatsKey)
		if err := rs.Seed(ctx, fixtures.DashboardSeed()); err != nil {
			logger.Warn("redis stats seed failed", zap.Error(err))
		}
		stats = rs
	}
	if err := fixtures.Seed(ctx, g); err != nil {
		logger.Warn("driver seed failed", zap.Error(err))
	}
	if drivers, err := fixtures.Drivers(ctx); err == nil {
		online := 0
		for _, d := range drivers {
			if d.Online {
				online++
			}
		}
		observability.DriversOnline.Set(float64(online))
	}

	var store storage.RescueStore = storage.NewMemoryStore()
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Warn("postgres unavailable, keeping rescues in memory", zap.Error(err))
		} else {
			defer ps.Close()
			if cfg.RunMigrations {
				if err := ps.Migrate(ctx); err != nil {
					return err
				}
				logger.Info("migration applied")
			}
			store = ps
		}
	}

	var pub events.Publisher = events.NopPublisher{}
	recorder := &storage.Recorder{Store: store, Stats: stats, Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		// the consumer owns the counters when events flow through kafka
		recorder.Stats = nil
	}
	defer pub.Close()

	wsreg := dispatch.NewWSRegistry(logger)
	m := &matcher.Service{
		Geo:             g,
		DefaultSpeedMps: cfg.DefaultSpeedMps,
		TopN:            cfg.MatcherTopN,
		ETACache:        matcher.NewETACache(5 * time.Minute),
	}
	mgr := sessions.NewManager(sessions.Options{
		TTL:     cfg.SessionTTL,
		Timings: cfg.Workflow,
		Logger:  logger,
		OnClose: wsreg.Drop,
		Deps: workflow.Deps{
			Directory: fixtures,
			Assigner:  m,
			Stats:     stats,
			Logger:    logger,
			Listener: workflow.Listeners{
				wsreg,
				observability.WorkflowListener(),
				events.Listener(pub, logger),
				recorder,
			},
		},
	})
	if err := mgr.Schedule("0 0 * * *", func() {
		if err := stats.ResetDaily(context.Background()); err != nil {
			logger.Warn("daily stats reset failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	if err := mgr.Start(cfg.SessionSweep); err != nil {
		return err
	}
	defer mgr.Stop()

	api, err := httpapi.NewServer(httpapi.Options{
		Sessions:    mgr,
		Directory:   fixtures,
		WSReg:       wsreg,
		Logger:      logger,
		RateLimit:   cfg.RateLimit,
		CORSOrigins: cfg.CORSOrigins,

		TrustForwardHeader: cfg.TrustProxy,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("ev-rescue listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
