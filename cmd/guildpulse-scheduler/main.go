package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/guildpulse/guildpulse/pkg/aggregation"
	"github.com/guildpulse/guildpulse/pkg/config"
	"github.com/guildpulse/guildpulse/pkg/guilds"
	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/queue"
	"github.com/guildpulse/guildpulse/pkg/scheduler"
	"github.com/guildpulse/guildpulse/pkg/sessions"
	"github.com/guildpulse/guildpulse/pkg/store"
)

var (
	runOnce = flag.String("run-once", "", "Run a single trigger and exit: 5min, hourly, daily, raw-cleanup, daily-cleanup or monthly-rollup")
)

func main() {
	flag.Parse()

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

	st := store.New(db, cfg.Database.OpTimeout)
	registry := guilds.NewRegistry(db, cfg.Database.OpTimeout)
	tracker := sessions.NewTracker(client, logger, cfg.Queue.KeyPrefix, cfg.Retention.SessionTTL)

	policy := queue.NewRetryPolicy(queue.RetryConfig{
		MaxAttempts:       cfg.Queue.MaxAttempts,
		InitialDelay:      cfg.Queue.InitialDelay,
		MaxDelay:          cfg.Queue.MaxDelay,
		BackoffMultiplier: cfg.Queue.BackoffMultiplier,
	})
	q := queue.New(client, policy, logger, nil, cfg.Queue.KeyPrefix)

	roller := aggregation.NewRoller(st, logger, 4)
	cleaner := aggregation.NewCleaner(st, tracker, logger, nil,
		days(cfg.Retention.RawEventDays), days(cfg.Retention.DailyStatsDays), cfg.Retention.SessionTTL)

	sched := scheduler.New(q, registry, roller, cleaner, cfg.Schedule, logger)

	ctx := context.Background()

	if *runOnce != "" {
		triggers := map[string]func(context.Context) error{
			"5min":           sched.RunFiveMinute,
			"hourly":         sched.RunHourly,
			"daily":          sched.RunDaily,
			"raw-cleanup":    sched.RunRawCleanup,
			"daily-cleanup":  sched.RunDailyCleanup,
			"monthly-rollup": sched.RunMonthlyRollup,
		}
		trigger, ok := triggers[*runOnce]
		if !ok {
			startupLog.Fatalf("Unknown trigger %q", *runOnce)
		}
		if err := trigger(ctx); err != nil {
			startupLog.Fatalf("Trigger %s failed: %v", *runOnce, err)
		}
		startupLog.Infof("Trigger %s completed", *runOnce)
		return
	}

	if err := sched.Start(ctx); err != nil {
		startupLog.Fatalf("Failed to start scheduler: %v", err)
	}
	startupLog.Info("guildpulse scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	startupLog.Info("shutting down")
	sched.Stop()
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
