// Package redis implements Redis caching and live presence tracking.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE TRACKER
// Live "who is in the room" view fed by frame ingestion. Each detection
// refreshes the student's presence for a TTL; students disappear from the
// view when the camera stops seeing them. The view is best effort and is
// never consulted by the durable attendance path.
//
// Architecture:
//   - A sorted set "presence:students" holds student IDs scored by the Unix
//     time their presence expires; reads filter on score >= now, so expiry
//     needs no background sweeper.
//   - A per-student key "presence:{id}" with TTL carries the last-seen time
//     for point lookups.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidStudentID is returned when the student ID is not positive.
	ErrInvalidStudentID = errors.New("presence: student ID must be positive")
)

// Key names for presence tracking.
const (
	// keyPresenceAll is the sorted set of present students.
	keyPresenceAll = "presence:students"

	// presenceKeyPrefix prefixes the per-student presence keys.
	presenceKeyPrefix = "presence:"
)

// PresenceKey generates the per-student presence key.
func PresenceKey(studentID int64) string {
	return presenceKeyPrefix + strconv.FormatInt(studentID, 10)
}

// PresenceTracker manages the live presence view in Redis.
type PresenceTracker struct {
	cache *Cache
}

// NewPresenceTracker creates a new PresenceTracker.
func NewPresenceTracker(cache *Cache) *PresenceTracker {
	return &PresenceTracker{cache: cache}
}

// MarkPresent refreshes a student's presence for the given TTL.
func (t *PresenceTracker) MarkPresent(ctx context.Context, studentID int64, ttl time.Duration) error {
	if studentID <= 0 {
		return ErrInvalidStudentID
	}
	if ttl <= 0 {
		ttl = TTLPresence
	}

	now := time.Now().UTC()

	pipe := t.cache.Client().Pipeline()
	pipe.Set(ctx, PresenceKey(studentID), now.Format(time.RFC3339Nano), ttl)
	pipe.ZAdd(ctx, keyPresenceAll, redis.Z{
		Score:  float64(now.Add(ttl).Unix()),
		Member: strconv.FormatInt(studentID, 10),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark present: %w", err)
	}

	return nil
}

// PresentNow returns the IDs of all currently present students.
func (t *PresenceTracker) PresentNow(ctx context.Context) ([]int64, error) {
	now := time.Now().UTC().Unix()

	members, err := t.cache.Client().ZRangeByScore(ctx, keyPresenceAll, &redis.ZRangeBy{
		Min: strconv.FormatInt(now, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list present students: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue // ignore foreign members
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// PresentCount returns how many students are currently present.
func (t *PresenceTracker) PresentCount(ctx context.Context) (int, error) {
	now := time.Now().UTC().Unix()

	count, err := t.cache.Client().ZCount(ctx, keyPresenceAll,
		strconv.FormatInt(now, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count present students: %w", err)
	}

	return int(count), nil
}

// IsPresent reports whether one student is currently in the view.
func (t *PresenceTracker) IsPresent(ctx context.Context, studentID int64) (bool, error) {
	if studentID <= 0 {
		return false, ErrInvalidStudentID
	}

	exists, err := t.cache.Exists(ctx, PresenceKey(studentID))
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}

	return exists, nil
}

// LastSeen returns when a present student was last detected. Returns
// ErrCacheMiss when the student is not in the view.
func (t *PresenceTracker) LastSeen(ctx context.Context, studentID int64) (time.Time, error) {
	if studentID <= 0 {
		return time.Time{}, ErrInvalidStudentID
	}

	raw, err := t.cache.GetString(ctx, PresenceKey(studentID))
	if err != nil {
		return time.Time{}, err
	}

	seen, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last seen: %w", err)
	}

	return seen, nil
}

// CleanupExpired trims expired members out of the sorted set. Reads already
// filter on score, so this only reclaims memory; run it periodically.
func (t *PresenceTracker) CleanupExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Unix()

	removed, err := t.cache.Client().ZRemRangeByScore(ctx, keyPresenceAll,
		"-inf", "("+strconv.FormatInt(now, 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup presence set: %w", err)
	}

	return removed, nil
}
