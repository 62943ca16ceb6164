// Package cache keeps computed month blocks in Redis.
//
// Entries are keyed by a per-user generation. Invalidate bumps the generation,
// so a result computed before a write lands under a key nobody reads again and
// simply expires.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"schedule-booking-api/internal/availability"
)

type MonthBlocks struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewMonthBlocks(rdb *redis.Client, ttl time.Duration) *MonthBlocks {
	return &MonthBlocks{rdb: rdb, ttl: ttl}
}

func genKey(userID string) string {
	return "blocks:" + userID + ":gen"
}

func key(userID string, gen int64, year int, month time.Month) string {
	return fmt.Sprintf("blocks:%s:%d:%04d-%02d", userID, gen, year, int(month))
}

// Generation returns the user's current generation, 0 before the first write.
func (c *MonthBlocks) Generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, genKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get reports ok=false on a miss.
func (c *MonthBlocks) Get(ctx context.Context, userID string, gen int64, year int, month time.Month) (availability.Month, bool, error) {
	raw, err := c.rdb.Get(ctx, key(userID, gen, year, month)).Bytes()
	if errors.Is(err, redis.Nil) {
		return availability.Month{}, false, nil
	}
	if err != nil {
		return availability.Month{}, false, err
	}
	var m availability.Month
	if err := json.Unmarshal(raw, &m); err != nil {
		return availability.Month{}, false, err
	}
	return m, true, nil
}

// Set stores m under gen. gen must be the value read before computing m.
func (c *MonthBlocks) Set(ctx context.Context, userID string, gen int64, year int, month time.Month, m availability.Month) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(userID, gen, year, month), raw, c.ttl).Err()
}

// Invalidate retires every cached month of the user.
func (c *MonthBlocks) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Incr(ctx, genKey(userID)).Err()
}
