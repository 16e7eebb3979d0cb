package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper guards ingestion against reprocessing the same message ID,
// typically after an upstream redelivery. Keys expire so the set does not
// grow without bound.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// New connects to redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*Deduper, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Deduper{
		client: client,
		ttl:    ttl,
		prefix: "freight:msg:",
		logger: logger,
	}, nil
}

// Seen atomically marks the message ID and reports whether it had already
// been marked. The first caller gets false and owns processing.
func (d *Deduper) Seen(ctx context.Context, messageID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+messageID, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if !ok {
		d.logger.Debug("Duplicate message suppressed", zap.String("message_id", messageID))
	}
	return !ok, nil
}

// Forget removes the dedup mark, letting a message be re-ingested after a
// failed run.
func (d *Deduper) Forget(ctx context.Context, messageID string) error {
	return d.client.Del(ctx, d.prefix+messageID).Err()
}

// Close releases the redis connection.
func (d *Deduper) Close() error {
	return d.client.Close()
}
