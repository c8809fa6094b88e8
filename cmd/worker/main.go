package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wellmom/wellmom-api/internal/repository/postgres"
	"github.com/wellmom/wellmom-api/internal/service/notification"
	"github.com/wellmom/wellmom-api/pkg/messaging/redis"
	"github.com/wellmom/wellmom-api/pkg/metrics"
)

// workerConfig is environment-only: the worker runs as a sidecar container
// and never reads the API's yaml config.
type workerConfig struct {
	DatabaseURL         string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL            string `envconfig:"REDIS_URL" required:"true"`
	PollIntervalSeconds int    `envconfig:"POLL_INTERVAL_SECONDS" default:"5"`
	BatchSize           int    `envconfig:"BATCH_SIZE" default:"100"`
	HealthPort          int    `envconfig:"HEALTH_PORT" default:"8081"`
}

func main() {
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	var cfg workerConfig
	if err := envconfig.Process("WELLMOM_WORKER", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load worker configuration")
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.RedisURL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     5,
		MinIdleConns: 1,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	workerMetrics := metrics.NewMetrics("wellmom_worker", registry)

	base := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(base)
	notifier := notification.NewService(notificationRepo, broker, workerMetrics)

	startHealthServer(db, registry, cfg.HealthPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down worker...")
		cancel()
	}()

	log.Info().
		Int("poll_interval_seconds", cfg.PollIntervalSeconds).
		Int("batch_size", cfg.BatchSize).
		Msg("notification worker started")

	ticker := time.NewTicker(time.Duration(cfg.PollIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker exited")
			return
		case <-ticker.C:
			published, err := notifier.DrainPending(ctx, cfg.BatchSize)
			if err != nil {
				log.Error().Err(err).Msg("failed to drain pending notifications")
				continue
			}
			if published > 0 {
				log.Info().Int("published", published).Msg("drained pending notifications")
			}
		}
	}
}

func startHealthServer(db *sqlx.DB, registry *prometheus.Registry, port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			log.Error().Err(err).Msg("health server failed")
			os.Exit(1)
		}
	}()
}
