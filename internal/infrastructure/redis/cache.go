// Package redis provides a best-effort availability cache and a fixed
// window rate limiter, adapted from the sibling services' redis client.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	Client *redis.Client
}

func New(addr, pass string, db int) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return &Cache{Client: rdb}
}

// GetAvailability returns the last known AvailableTickets count for an
// event, backing Intake's fast-path UNAVAILABLE rejection (spec §4.1). A
// cache miss or stale value never blocks intake — the Allocator re-checks
// availability authoritatively under lock regardless of this hint.
func (c *Cache) GetAvailability(ctx context.Context, eventID uuid.UUID) (int, error) {
	val, err := c.Client.Get(ctx, "event:avail:"+eventID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrCacheMiss
		}
		return 0, err
	}
	return strconv.Atoi(val)
}

func (c *Cache) SetAvailability(ctx context.Context, eventID uuid.UUID, available int, ttl time.Duration) error {
	return c.Client.Set(ctx, "event:avail:"+eventID.String(), available, ttl).Err()
}

// AllowRequest is a fixed-window rate limiter keyed by caller IP, used to
// shed load on every routed HTTP endpoint before it ever reaches Postgres.
func (c *Cache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	key := "ratelimit:" + ip
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil // fail open
	}
	if count == 1 {
		_ = c.Client.Expire(ctx, key, window).Err()
	}
	return count <= int64(limit), nil
}
