// Package config provides environment-based application configuration.
//
// All settings come from GUILDPULSE_* environment variables with sensible
// defaults, validated at load time:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// The surface covers the durable store (Postgres URL, per-operation
// timeout), the Redis backend (host, port, password, logical db index),
// the queue retry policy (attempts, exponential backoff), retention
// windows (raw events, daily stats, voice session TTL), the six scheduler
// cron expressions, and the worker pool.
package config
