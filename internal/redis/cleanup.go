// Package redis reads syslog records from Redis streams through consumer groups and
// maintains those groups.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pruneResult counts what one cleanup pass did to a group
type pruneResult struct {
	removed int
	// held are idle consumers kept because they still own pending entries
	held int
}

// CleanupDeadConsumers deletes consumers idle for longer than idleTimeout. A consumer
// that still owns pending entries is kept until ClaimIdle moves them elsewhere, since
// deleting it would drop those entries from the group.
func (c *Client) CleanupDeadConsumers(ctx context.Context, idleTimeout time.Duration) error {
	var total pruneResult

	for _, stream := range c.snapshot() {
		res, err := c.pruneGroup(ctx, stream, idleTimeout)
		if err != nil {
			c.log.Warn("failed to cleanup dead consumers for stream %s: %v", stream, err)
			continue
		}
		total.removed += res.removed
		total.held += res.held
	}

	if total.removed > 0 {
		c.log.Info("Removed %d dead consumers", total.removed)
	}
	if total.held > 0 {
		c.log.Debug("Kept %d idle consumers with pending records", total.held)
	}
	return nil
}

func (c *Client) pruneGroup(ctx context.Context, stream string, idleTimeout time.Duration) (pruneResult, error) {
	group := c.group(stream)
	consumers, err := c.rdb.XInfoConsumers(ctx, stream, group).Result()
	if err != nil {
		return pruneResult{}, fmt.Errorf("failed to get consumers info: %w", err)
	}

	dead, held := deadConsumers(consumers, c.consumer, idleTimeout)
	res := pruneResult{held: len(held)}
	for _, name := range held {
		c.log.Debug("Consumer %s on stream %s is idle but owns pending records", name, stream)
	}

	for _, name := range dead {
		if err := c.rdb.XGroupDelConsumer(ctx, stream, group, name).Err(); err != nil {
			c.log.Error("Failed to delete consumer %s from stream %s: %v", name, stream, err)
			continue
		}
		c.log.Info("Removed dead consumer %s from stream %s", name, stream)
		res.removed++
	}
	return res, nil
}

// deadConsumers splits the consumers idle past idleTimeout into those safe to delete
// and those still holding pending entries. self is never returned.
func deadConsumers(consumers []redis.XInfoConsumer, self string, idleTimeout time.Duration) (dead, held []string) {
	for _, cons := range consumers {
		if cons.Name == self || cons.Idle <= idleTimeout {
			continue
		}
		if cons.Pending > 0 {
			held = append(held, cons.Name)
			continue
		}
		dead = append(dead, cons.Name)
	}
	return dead, held
}
