// Package presence tracks which users are currently connected to the
// realtime hub, backed by short-TTL keys in the same Redis instance
// used for caching and the notification scheduler. A nil *Tracker is
// valid: presence is best-effort, not a correctness dependency, so its
// absence degrades to "nobody is ever online" rather than an error.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL is fixed per the system's own resolution of its presence
// staleness question: a connection that misses two heartbeats in a
// row (HeartbeatInterval) is considered gone.
const TTL = 60 * time.Second

// HeartbeatInterval is how often a connected session refreshes its key.
const HeartbeatInterval = 30 * time.Second

type Tracker struct {
	client *redis.Client
}

// New returns a Tracker backed by client, or nil when client is nil so
// that every method takes its no-KV-store path.
func New(client *redis.Client) *Tracker {
	if client == nil {
		return nil
	}
	return &Tracker{client: client}
}

func key(userID string) string {
	return fmt.Sprintf("online:%s", userID)
}

// MarkOnline refreshes userID's presence key. Returns whether this
// call transitioned the user from offline to online, so the caller can
// decide whether to broadcast a presence.update event.
func (t *Tracker) MarkOnline(ctx context.Context, userID string) (wentOnline bool, err error) {
	if t == nil {
		return false, nil
	}
	set, err := t.client.SetNX(ctx, key(userID), "1", TTL).Result()
	if err != nil {
		return false, err
	}
	if !set {
		// Already online: just refresh the TTL.
		if err := t.client.Expire(ctx, key(userID), TTL).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// MarkOffline deletes userID's presence key immediately, used when the
// last WebSocket session for a user closes rather than waiting out TTL.
func (t *Tracker) MarkOffline(ctx context.Context, userID string) error {
	if t == nil {
		return nil
	}
	return t.client.Del(ctx, key(userID)).Err()
}

// IsOnline reports whether userID currently holds a live presence key.
func (t *Tracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	if t == nil {
		return false, nil
	}
	n, err := t.client.Exists(ctx, key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BulkStatus reports online state for many users in one round trip,
// used when rendering a participant list.
func (t *Tracker) BulkStatus(ctx context.Context, userIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(userIDs))
	if t == nil || len(userIDs) == 0 {
		for _, id := range userIDs {
			out[id] = false
		}
		return out, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = key(id)
	}
	vals, err := t.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, id := range userIDs {
		out[id] = vals[i] != nil
	}
	return out, nil
}

// Configured reports whether presence tracking is backed by a real
// Redis connection.
func (t *Tracker) Configured() bool {
	return t != nil
}
