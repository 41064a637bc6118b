package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ibs-source/syslog-forwarder/internal/config"
	"github.com/ibs-source/syslog-forwarder/internal/log"
	"github.com/ibs-source/syslog-forwarder/internal/message"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

// Client reads syslog records from Redis streams through consumer groups
type Client struct {
	rdb             *redis.Client
	mu              sync.RWMutex
	streams         []string
	groups          map[string]string
	multiStreamMode bool
	consumer        string
	batchSize       int64
	blockTimeout    time.Duration
	claimIdle       time.Duration
	log             *log.Logger
}

// NewClient connects to Redis and joins (or creates) the consumer group of every stream
func NewClient(cfg *config.RedisConfig, logger *log.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		// Plain standalone servers reject CLIENT MAINT_NOTIFICATIONS
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	client := &Client{
		rdb:          rdb,
		consumer:     cfg.Consumer,
		batchSize:    int64(cfg.BatchSize),
		blockTimeout: cfg.BlockTimeout,
		claimIdle:    cfg.ClaimIdle,
		groups:       make(map[string]string),
		log:          logger,
	}

	// An empty stream name means every stream in the database
	if cfg.Stream == "" {
		logger.Info("Multi-stream mode enabled: discovering Redis streams")
		streams, err := client.DiscoverStreams(ctx)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to discover streams: %w", err)
		}

		if len(streams) == 0 {
			logger.Warn("No streams found in Redis, will retry on next refresh")
		} else {
			logger.Info("Discovered %d streams: %v", len(streams), streams)
		}

		client.streams = streams
		client.multiStreamMode = true
	} else {
		logger.Info("Single-stream mode: consuming from stream '%s'", cfg.Stream)
		client.streams = []string{cfg.Stream}
	}

	if err := client.ensureGroups(ctx, client.streams); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return client, nil
}

// DiscoverStreams lists every stream-typed key
func (c *Client) DiscoverStreams(ctx context.Context) ([]string, error) {
	keys, err := c.rdb.Keys(ctx, "*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	streams := make([]string, 0)
	for _, key := range keys {
		keyType, err := c.rdb.Type(ctx, key).Result()
		if err != nil {
			c.log.Warn("failed to get type for key %s: %v", key, err)
			continue
		}
		if keyType == "stream" {
			streams = append(streams, key)
		}
	}

	return streams, nil
}

// GroupName returns the consumer group used for stream
func GroupName(stream string) string {
	return "group-" + stream
}

func (c *Client) ensureGroups(ctx context.Context, streams []string) error {
	for _, stream := range streams {
		groupName := GroupName(stream)

		err := c.rdb.XGroupCreateMkStream(ctx, stream, groupName, "0").Err()
		if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("failed to create consumer group for stream %s: %w", stream, err)
		}
		if err != nil {
			c.log.Info("Consumer group '%s' already exists for stream '%s', joining existing group", groupName, stream)
		} else {
			c.log.Info("Created consumer group '%s' for stream '%s'", groupName, stream)
		}

		c.mu.Lock()
		c.groups[stream] = groupName
		c.mu.Unlock()
	}
	return nil
}

func (c *Client) snapshot() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.streams...)
}

func (c *Client) group(stream string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if g, ok := c.groups[stream]; ok {
		return g
	}
	return GroupName(stream)
}

// ReadBatch fetches new entries with XREADGROUP. A single stream blocks up to the
// configured timeout; several streams are polled one group at a time since every
// stream has its own consumer group.
func (c *Client) ReadBatch(ctx context.Context) (message.Batch, error) {
	streams := c.snapshot()
	switch len(streams) {
	case 0:
		return message.Batch{}, nil
	case 1:
		records, err := c.readStream(ctx, streams[0], c.blockTimeout)
		return message.Batch{Items: records}, err
	}

	var records []message.Record
	for _, stream := range streams {
		got, err := c.readStream(ctx, stream, -1)
		if err != nil {
			return message.Batch{Items: records}, err
		}
		records = append(records, got...)
	}
	if len(records) == 0 {
		wait := min(c.blockTimeout, multiStreamPoll)
		select {
		case <-ctx.Done():
			return message.Batch{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return message.Batch{Items: records}, nil
}

// multiStreamPoll bounds the idle wait between polling passes over several streams
const multiStreamPoll = 100 * time.Millisecond

// readStream reads from one stream; a negative block does not wait
func (c *Client) readStream(ctx context.Context, stream string, block time.Duration) ([]message.Record, error) {
	result, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group(stream),
		Consumer: c.consumer,
		Streams:  []string{stream, ">"},
		Count:    c.batchSize,
		Block:    block,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup failed on stream %s: %w", stream, err)
	}

	var records []message.Record
	for _, streamResult := range result {
		records = append(records, toRecords(streamResult.Stream, streamResult.Messages)...)
	}
	return records, nil
}

// ClaimIdle takes over entries left pending by other consumers for longer than the
// claim idle time
func (c *Client) ClaimIdle(ctx context.Context) (message.Batch, error) {
	var records []message.Record

	for _, stream := range c.snapshot() {
		pending, err := c.getPendingMessages(ctx, stream)
		if err != nil {
			c.log.Warn("failed to get pending messages for stream %s: %v", stream, err)
			continue
		}

		if len(pending) == 0 {
			continue
		}

		claimed, err := c.claimMessages(ctx, stream, pending)
		if err != nil {
			c.log.Warn("failed to claim messages for stream %s: %v", stream, err)
			continue
		}

		records = append(records, toRecords(stream, claimed)...)
	}

	return message.Batch{Items: records}, nil
}

func (c *Client) getPendingMessages(ctx context.Context, stream string) ([]redis.XPendingExt, error) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  c.group(stream),
		Idle:   c.claimIdle,
		Start:  "-",
		End:    "+",
		Count:  c.batchSize,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xpending failed: %w", err)
	}

	return pending, nil
}

func (c *Client) claimMessages(
	ctx context.Context, stream string, pending []redis.XPendingExt,
) ([]redis.XMessage, error) {
	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}

	claimed, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    c.group(stream),
		Consumer: c.consumer,
		MinIdle:  c.claimIdle,
		Messages: ids,
	}).Result()

	if err != nil {
		return nil, fmt.Errorf("xclaim failed: %w", err)
	}

	return claimed, nil
}

func toRecords(stream string, msgs []redis.XMessage) []message.Record {
	records := make([]message.Record, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, message.FromValues(msg.ID, stream, msg.Values))
	}
	return records
}

// RefreshStreams rediscovers streams in multi-stream mode and returns how many are new
func (c *Client) RefreshStreams(ctx context.Context) (int, error) {
	if !c.multiStreamMode {
		return 0, nil
	}

	discovered, err := c.DiscoverStreams(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to discover streams: %w", err)
	}

	existing := make(map[string]bool)
	for _, stream := range c.snapshot() {
		existing[stream] = true
	}

	var newStreams []string
	for _, stream := range discovered {
		if !existing[stream] {
			newStreams = append(newStreams, stream)
		}
	}

	if len(newStreams) > 0 {
		c.log.Info("Discovered %d new streams: %v", len(newStreams), newStreams)
		if err := c.ensureGroups(ctx, newStreams); err != nil {
			return 0, fmt.Errorf("failed to create groups for new streams: %w", err)
		}
	}

	c.mu.Lock()
	c.streams = discovered
	c.mu.Unlock()

	if len(discovered) < len(existing) {
		c.log.Info("Stream count decreased from %d to %d", len(existing), len(discovered))
	}

	return len(newStreams), nil
}

// Ack acknowledges and deletes a delivered record
func (c *Client) Ack(ctx context.Context, rec message.Record) error {
	return c.AckAndDelete(ctx, rec)
}

// AckAndDelete acknowledges rec in its consumer group and deletes it from the stream
func (c *Client) AckAndDelete(ctx context.Context, rec message.Record) error {
	stream := rec.Stream
	if stream == "" {
		streams := c.snapshot()
		if len(streams) == 0 {
			return fmt.Errorf("no stream known for message %s", rec.ID)
		}
		stream = streams[0]
	}

	if err := c.rdb.XAck(ctx, stream, c.group(stream), rec.ID).Err(); err != nil {
		return fmt.Errorf("xack failed for message %s in stream %s: %w", rec.ID, stream, err)
	}

	if err := c.rdb.XDel(ctx, stream, rec.ID).Err(); err != nil {
		return fmt.Errorf("xdel failed for message %s in stream %s: %w", rec.ID, stream, err)
	}

	return nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}
