package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cooldown enforces a minimum interval between votes from the same user,
// shared across instances. Implements the vote limiter interface of the
// service layer.
type Cooldown struct {
	rdb      *goredis.Client
	interval time.Duration
}

func NewCooldown(rdb *goredis.Client, interval time.Duration) *Cooldown {
	return &Cooldown{rdb: rdb, interval: interval}
}

// Allow consumes the user's cooldown slot. Returns false while a previous
// vote's interval is still running.
func (c *Cooldown) Allow(ctx context.Context, userID uuid.UUID) (bool, error) {
	set, err := c.rdb.SetNX(ctx, cooldownKey(userID), "1", c.interval).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check vote cooldown: %w", err)
	}
	return set, nil
}

func cooldownKey(userID uuid.UUID) string {
	return "cooldown:vote:" + userID.String()
}
