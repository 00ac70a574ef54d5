package store

// schemaStatements holds the table and index DDL. Timestamps are epoch
// milliseconds; dates are YYYY-MM-DD strings and months YYYY-MM so the
// same SQL runs on PostgreSQL and SQLite.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS raw_events (
		event_key    TEXT PRIMARY KEY,
		event_type   TEXT NOT NULL,
		guild_id     TEXT NOT NULL,
		user_id      TEXT NOT NULL DEFAULT '',
		channel_id   TEXT NOT NULL DEFAULT '',
		message_id   TEXT NOT NULL DEFAULT '',
		role_id      TEXT NOT NULL DEFAULT '',
		timestamp_ms BIGINT NOT NULL,
		payload      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_events_guild_time
		ON raw_events (guild_id, timestamp_ms)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_events_time
		ON raw_events (timestamp_ms)`,

	`CREATE TABLE IF NOT EXISTS member_stats (
		guild_id                 TEXT NOT NULL,
		user_id                  TEXT NOT NULL,
		total_messages           BIGINT NOT NULL DEFAULT 0,
		total_voice_minutes      BIGINT NOT NULL DEFAULT 0,
		total_reactions_given    BIGINT NOT NULL DEFAULT 0,
		total_reactions_received BIGINT NOT NULL DEFAULT 0,
		last_seen_ms             BIGINT NOT NULL DEFAULT 0,
		last_message_ms          BIGINT NOT NULL DEFAULT 0,
		last_voice_ms            BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (guild_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS daily_channel_stats (
		guild_id           TEXT NOT NULL,
		user_id            TEXT NOT NULL,
		date               TEXT NOT NULL,
		channel_id         TEXT NOT NULL DEFAULT '',
		messages_sent      BIGINT NOT NULL DEFAULT 0,
		messages_deleted   BIGINT NOT NULL DEFAULT 0,
		messages_edited    BIGINT NOT NULL DEFAULT 0,
		deleted_by_self    BIGINT NOT NULL DEFAULT 0,
		deleted_by_mod     BIGINT NOT NULL DEFAULT 0,
		voice_minutes      BIGINT NOT NULL DEFAULT 0,
		reactions_given    BIGINT NOT NULL DEFAULT 0,
		reactions_received BIGINT NOT NULL DEFAULT 0,
		peak_hour          INTEGER NOT NULL DEFAULT -1,
		first_message_ms   BIGINT NOT NULL DEFAULT 0,
		last_message_ms    BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (guild_id, user_id, date, channel_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_channel_stats_guild_date
		ON daily_channel_stats (guild_id, date)`,

	`CREATE TABLE IF NOT EXISTS monthly_stats (
		guild_id                  TEXT NOT NULL,
		user_id                   TEXT NOT NULL,
		month                     TEXT NOT NULL,
		total_messages            BIGINT NOT NULL DEFAULT 0,
		total_voice_minutes       BIGINT NOT NULL DEFAULT 0,
		total_reactions_given     BIGINT NOT NULL DEFAULT 0,
		total_reactions_received  BIGINT NOT NULL DEFAULT 0,
		active_days               INTEGER NOT NULL DEFAULT 0,
		avg_messages_per_day      DOUBLE PRECISION NOT NULL DEFAULT 0,
		avg_voice_minutes_per_day DOUBLE PRECISION NOT NULL DEFAULT 0,
		top_channels              TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (guild_id, user_id, month)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_monthly_stats_guild_month
		ON monthly_stats (guild_id, month)`,

	`CREATE TABLE IF NOT EXISTS metrics_snapshots (
		guild_id            TEXT NOT NULL,
		period_start_ms     BIGINT NOT NULL,
		period_end_ms       BIGINT NOT NULL,
		period_type         TEXT NOT NULL,
		total_messages      BIGINT NOT NULL DEFAULT 0,
		total_voice_minutes BIGINT NOT NULL DEFAULT 0,
		total_reactions     BIGINT NOT NULL DEFAULT 0,
		unique_active_users BIGINT NOT NULL DEFAULT 0,
		event_counts        TEXT NOT NULL DEFAULT '{}',
		created_at_ms       BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (guild_id, period_start_ms, period_end_ms, period_type)
	)`,

	`CREATE TABLE IF NOT EXISTS guilds (
		guild_id      TEXT PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at_ms BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS guild_rollups (
		guild_id        TEXT NOT NULL,
		month           TEXT NOT NULL,
		completed_at_ms BIGINT NOT NULL,
		PRIMARY KEY (guild_id, month)
	)`,
}
