// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package publish fans settings snapshots out to shared infrastructure.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	xglog "github.com/ManuGH/dpmon/internal/log"
	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoSnapshot is returned by Current when nothing has been published yet.
var ErrNoSnapshot = errors.New("no settings published")

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key and channel, e.g. "dpmon:".
	Prefix string
}

// redisRecord is the value stored under <prefix>settings:current.
type redisRecord struct {
	Revision string            `json:"revision"`
	Epoch    uint64            `json:"epoch"`
	Document settings.Document `json:"document"`
}

// Redis stores the current snapshot and announces every change on a channel,
// so other dashboard hosts can pick it up.
type Redis struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	r := newRedis(client, cfg.Prefix)
	r.logger.Info().
		Str(xglog.FieldEvent, "publish.redis_connected").
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis")
	return r, nil
}

func newRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		logger: xglog.WithComponent("publish"),
	}
}

// CurrentKey holds the JSON of the newest snapshot.
func (r *Redis) CurrentKey() string { return r.prefix + "settings:current" }

// Channel receives the revision hash of every published snapshot.
func (r *Redis) Channel() string { return r.prefix + "settings:changed" }

func (r *Redis) Name() string { return "redis" }

// Publish stores snap and announces it in one MULTI/EXEC.
func (r *Redis) Publish(ctx context.Context, snap *settings.Snapshot) error {
	data, err := json.Marshal(redisRecord{Revision: snap.Revision, Epoch: snap.Epoch, Document: snap.Document})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.CurrentKey(), data, 0)
		pipe.Publish(ctx, r.Channel(), snap.Revision)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	r.logger.Debug().
		Str(xglog.FieldEvent, "publish.redis_published").
		Str(xglog.FieldRevision, snap.Revision).
		Uint64(xglog.FieldEpoch, snap.Epoch).
		Msg("settings published to Redis")
	return nil
}

// Current reads back the stored snapshot.
func (r *Redis) Current(ctx context.Context) (settings.Document, string, error) {
	val, err := r.client.Get(ctx, r.CurrentKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return settings.Document{}, "", ErrNoSnapshot
	}
	if err != nil {
		return settings.Document{}, "", fmt.Errorf("redis get: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return settings.Document{}, "", fmt.Errorf("decode stored snapshot: %w", err)
	}
	return rec.Document, rec.Revision, nil
}

// HealthCheck pings the server.
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
