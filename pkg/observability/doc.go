// Package observability provides structured logging, Prometheus metrics, and health checks.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("guild_id", guildID).Info("aggregation complete")
//
// Loggers can travel through context so queue workers annotate everything
// they touch with the job and guild being processed:
//
//	ctx = observability.WithJobID(ctx, job.ID)
//	observability.FromContext(ctx).Warn("window had no events")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.EventsAccepted.WithLabelValues("MESSAGE_CREATE").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	mux.HandleFunc("/healthz", checker.HTTPHandler())
package observability
