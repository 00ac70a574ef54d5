package guilds

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Guild is one registered guild
type Guild struct {
	GuildID     string
	Name        string
	Active      bool
	CreatedAtMs int64
}

// Registry tracks which guilds the pipeline aggregates. Scheduled jobs
// fan out over the active set only.
type Registry struct {
	db        *sql.DB
	opTimeout time.Duration
}

// NewRegistry wraps an open database handle
func NewRegistry(db *sql.DB, opTimeout time.Duration) *Registry {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Registry{db: db, opTimeout: opTimeout}
}

// Upsert registers a guild or refreshes its name. New guilds start active.
func (r *Registry) Upsert(ctx context.Context, guildID, name string, nowMs int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guilds (guild_id, name, active, created_at_ms)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (guild_id) DO UPDATE SET name = excluded.name
	`, guildID, name, nowMs)
	if err != nil {
		return fmt.Errorf("failed to upsert guild %s: %w", guildID, err)
	}
	return nil
}

// SetActive toggles whether scheduled aggregation covers the guild
func (r *Registry) SetActive(ctx context.Context, guildID string, active bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE guilds SET active = $2 WHERE guild_id = $1
	`, guildID, active)
	if err != nil {
		return fmt.Errorf("failed to set guild %s active=%v: %w", guildID, active, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("guild %s is not registered", guildID)
	}
	return nil
}

// Get fetches one guild. Returns (nil, nil) when unregistered.
func (r *Registry) Get(ctx context.Context, guildID string) (*Guild, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	var g Guild
	err := r.db.QueryRowContext(ctx, `
		SELECT guild_id, name, active, created_at_ms FROM guilds WHERE guild_id = $1
	`, guildID).Scan(&g.GuildID, &g.Name, &g.Active, &g.CreatedAtMs)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get guild %s: %w", guildID, err)
	}
	return &g, nil
}

// ListActive returns every active guild, ordered by id for stable fan-out
func (r *Registry) ListActive(ctx context.Context) ([]Guild, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT guild_id, name, active, created_at_ms FROM guilds
		WHERE active = TRUE ORDER BY guild_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active guilds: %w", err)
	}
	defer rows.Close()

	var out []Guild
	for rows.Next() {
		var g Guild
		if err := rows.Scan(&g.GuildID, &g.Name, &g.Active, &g.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("failed to scan guild row: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ActiveIDs returns the ids of every active guild
func (r *Registry) ActiveIDs(ctx context.Context) ([]string, error) {
	guilds, err := r.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(guilds))
	for i, g := range guilds {
		ids[i] = g.GuildID
	}
	return ids, nil
}
