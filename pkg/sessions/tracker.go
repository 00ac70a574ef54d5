package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/guildpulse/guildpulse/pkg/observability"
)

const (
	lockTTL      = 5 * time.Second
	lockRetries  = 50
	lockRetryGap = 20 * time.Millisecond
)

// Session is one member's open voice session
type Session struct {
	ChannelID  string `json:"channelId"`
	JoinedAtMs int64  `json:"joinedAtMs"`
}

// ClosedSession is a session that just ended, with its duration in
// whole minutes (floor). Partial minutes are discarded.
type ClosedSession struct {
	ChannelID  string
	JoinedAtMs int64
	LeftAtMs   int64
	Minutes    int64
}

// Tracker keeps open voice sessions in Redis. Sessions are ephemeral:
// every key carries a TTL so a missed leave event cannot pin state
// forever.
type Tracker struct {
	client    *redis.Client
	logger    *observability.Logger
	keyPrefix string
	ttl       time.Duration
}

// NewTracker builds a tracker writing keys under keyPrefix with the
// given session TTL.
func NewTracker(client *redis.Client, logger *observability.Logger, keyPrefix string, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{client: client, logger: logger, keyPrefix: keyPrefix, ttl: ttl}
}

func (t *Tracker) sessionKey(guildID, userID string) string {
	return fmt.Sprintf("%s:session:%s:%s", t.keyPrefix, guildID, userID)
}

func (t *Tracker) lockKey(guildID, userID string) string {
	return fmt.Sprintf("%s:session-lock:%s:%s", t.keyPrefix, guildID, userID)
}

// Transition applies one voice state update. A non-empty channelID is a
// join (or a switch when a session is already open); an empty channelID
// is a leave. Returns the closed session when the update ended one, nil
// otherwise. A leave with no open session is a no-op.
func (t *Tracker) Transition(ctx context.Context, guildID, userID, channelID string, tsMs int64) (*ClosedSession, error) {
	unlock, err := t.acquireLock(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	key := t.sessionKey(guildID, userID)
	current, err := t.getSession(ctx, key)
	if err != nil {
		return nil, err
	}

	if channelID == "" {
		if current == nil {
			// The member connected before the tracker saw any join
			t.logger.WithFields(map[string]interface{}{
				"guild_id": guildID,
				"user_id":  userID,
			}).Debug("leave with no open session, ignoring")
			return nil, nil
		}
		if err := t.client.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("failed to close session %s: %w", key, err)
		}
		return closed(current, tsMs), nil
	}

	if current != nil && current.ChannelID == channelID {
		// Duplicate join for the open channel, keep the original start
		return nil, nil
	}

	if err := t.openSession(ctx, key, channelID, tsMs); err != nil {
		return nil, err
	}
	if current != nil {
		return closed(current, tsMs), nil
	}
	return nil, nil
}

// Current returns the member's open session, or nil when none is open
func (t *Tracker) Current(ctx context.Context, guildID, userID string) (*Session, error) {
	return t.getSession(ctx, t.sessionKey(guildID, userID))
}

// Sweep deletes open sessions that started before cutoffMs and returns
// how many were dropped. Swept sessions contribute no voice minutes;
// they are abandoned, not closed.
func (t *Tracker) Sweep(ctx context.Context, cutoffMs int64) (int, error) {
	pattern := t.keyPrefix + ":session:*"
	swept := 0

	var cursor uint64
	for {
		keys, next, err := t.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return swept, fmt.Errorf("failed to scan sessions: %w", err)
		}
		for _, key := range keys {
			sess, err := t.getSession(ctx, key)
			if err != nil {
				t.logger.WithError(err).WithField("key", key).Warn("skipping unreadable session")
				continue
			}
			if sess == nil || sess.JoinedAtMs >= cutoffMs {
				continue
			}
			if err := t.client.Del(ctx, key).Err(); err != nil {
				return swept, fmt.Errorf("failed to sweep session %s: %w", key, err)
			}
			swept++
		}
		cursor = next
		if cursor == 0 {
			return swept, nil
		}
	}
}

func (t *Tracker) getSession(ctx context.Context, key string) (*Session, error) {
	raw, err := t.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", key, err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", key, err)
	}
	return &sess, nil
}

func (t *Tracker) openSession(ctx context.Context, key, channelID string, tsMs int64) error {
	raw, err := json.Marshal(Session{ChannelID: channelID, JoinedAtMs: tsMs})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := t.client.Set(ctx, key, raw, t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to open session %s: %w", key, err)
	}
	return nil
}

// acquireLock serializes transitions for one member so two workers
// handling the same user's events cannot interleave.
func (t *Tracker) acquireLock(ctx context.Context, guildID, userID string) (func(), error) {
	key := t.lockKey(guildID, userID)
	for i := 0; i < lockRetries; i++ {
		ok, err := t.client.SetNX(ctx, key, "1", lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock %s: %w", key, err)
		}
		if ok {
			return func() {
				if err := t.client.Del(context.Background(), key).Err(); err != nil {
					t.logger.WithError(err).WithField("key", key).Warn("failed to release session lock")
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryGap):
		}
	}
	return nil, fmt.Errorf("session lock %s held too long", key)
}

func closed(sess *Session, leftAtMs int64) *ClosedSession {
	minutes := (leftAtMs - sess.JoinedAtMs) / 60000
	if minutes < 0 {
		minutes = 0
	}
	return &ClosedSession{
		ChannelID:  sess.ChannelID,
		JoinedAtMs: sess.JoinedAtMs,
		LeftAtMs:   leftAtMs,
		Minutes:    minutes,
	}
}
