// Package cache is a best-effort two-tier read cache (in-process LRU
// over Redis) for dashboard and leaderboard query results.
package cache
