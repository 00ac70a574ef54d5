package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/guildpulse/guildpulse/pkg/aggregation"
	"github.com/guildpulse/guildpulse/pkg/config"
	"github.com/guildpulse/guildpulse/pkg/events"
	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/processors"
	"github.com/guildpulse/guildpulse/pkg/queue"
	"github.com/guildpulse/guildpulse/pkg/sessions"
	"github.com/guildpulse/guildpulse/pkg/store"
)

func main() {
	startupLog := logrus.New()
	startupLog.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		startupLog.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		startupLog.Fatalf("Invalid configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		startupLog.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		startupLog.Fatalf("Failed to ping database: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		startupLog.Fatalf("Failed to ping redis: %v", err)
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	st := store.New(db, cfg.Database.OpTimeout)
	if err := st.Migrate(context.Background()); err != nil {
		startupLog.Fatalf("Failed to run migrations: %v", err)
	}

	policy := queue.NewRetryPolicy(queue.RetryConfig{
		MaxAttempts:       cfg.Queue.MaxAttempts,
		InitialDelay:      cfg.Queue.InitialDelay,
		MaxDelay:          cfg.Queue.MaxDelay,
		BackoffMultiplier: cfg.Queue.BackoffMultiplier,
	})
	q := queue.New(client, policy, logger, metrics, cfg.Queue.KeyPrefix)

	tracker := sessions.NewTracker(client, logger, cfg.Queue.KeyPrefix, cfg.Retention.SessionTTL)
	intake := events.NewIntake(st, events.NewDispatcher(q, logger), logger, metrics)

	worker := queue.NewWorker(q, cfg.Worker.Count, cfg.Worker.JobTimeout, logger, metrics)
	processors.RegisterAll(worker,
		processors.NewMessageProcessor(st, logger),
		processors.NewVoiceProcessor(tracker, st, logger),
		processors.NewReactionProcessor(st, logger),
		processors.NewMembershipProcessor(st, logger),
	)
	aggregator := aggregation.NewAggregator(st, logger, metrics)
	worker.Register(aggregation.JobAggregateWindow, aggregator.HandleWindow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := worker.Start(ctx); err != nil {
		startupLog.Fatalf("Failed to start worker pool: %v", err)
	}

	router := mux.NewRouter()
	router.HandleFunc("/v1/events", intake.HTTPHandler()).Methods(http.MethodPost)
	router.HandleFunc("/healthz", observability.NewHealthChecker(db, client).HTTPHandler()).Methods(http.MethodGet)
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.Handler(registry)).Methods(http.MethodGet)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Worker.HealthPort,
		Handler: router,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			startupLog.Fatalf("Health server failed: %v", err)
		}
	}()

	startupLog.Infof("guildpulse worker started: %d workers, http on :%s", cfg.Worker.Count, cfg.Worker.HealthPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	startupLog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		startupLog.Warnf("Health server shutdown: %v", err)
	}
	if err := worker.Stop(30 * time.Second); err != nil {
		startupLog.Warnf("Worker shutdown: %v", err)
	}
}
