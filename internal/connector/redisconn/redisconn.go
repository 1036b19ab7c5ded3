// Package redisconn sources events from a Redis list and labels from a
// Redis hash.
package redisconn

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"labelstream/pkg/models"
)

// Config configures the Redis connector.
type Config struct {
	Addr     string
	Password string
	DB       int

	// EventsKey is the list new events are pushed to; LabelsKey is the hash
	// holding ground-truth values keyed by event id.
	EventsKey string
	LabelsKey string

	BlockTimeout time.Duration
}

// Connector reads events with BLPOP and resolves labels with one HMGET per
// batch.
type Connector struct {
	client       *redis.Client
	eventsKey    string
	labelsKey    string
	blockTimeout time.Duration
}

// New creates a Redis connector.
func New(cfg Config) (*Connector, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.EventsKey == "" {
		return nil, fmt.Errorf("redis events key is required")
	}
	if cfg.LabelsKey == "" {
		return nil, fmt.Errorf("redis labels key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Connector{
		client:       client,
		eventsKey:    cfg.EventsKey,
		labelsKey:    cfg.LabelsKey,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Next blocks until an event is available. BLPOP timeouts loop silently so
// a quiet list does not end the stream.
func (c *Connector) Next(ctx context.Context) (models.Features, error) {
	for {
		res, err := c.client.BLPop(ctx, c.blockTimeout, c.eventsKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(res) < 2 {
			continue
		}

		var x models.Features
		if err := json.Unmarshal([]byte(res[1]), &x); err != nil {
			return nil, fmt.Errorf("malformed event payload: %w", err)
		}
		return x, nil
	}
}

// FetchLabels resolves labels for ids from the labels hash. Missing hash
// fields come back nil from Redis and are omitted from the result.
func (c *Connector) FetchLabels(ctx context.Context, ids []string) (map[string]interface{}, error) {
	if len(ids) == 0 {
		return map[string]interface{}{}, nil
	}

	vals, err := c.client.HMGet(ctx, c.labelsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget %s: %w", c.labelsKey, err)
	}

	out := make(map[string]interface{}, len(ids))
	for i, v := range vals {
		if v == nil || i >= len(ids) {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		out[ids[i]] = decodeLabel(raw)
	}
	return out, nil
}

// decodeLabel interprets a stored label as JSON when possible, falling back
// to the raw string.
func decodeLabel(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// Close closes the underlying client.
func (c *Connector) Close() error {
	return c.client.Close()
}
