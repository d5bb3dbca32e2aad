// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relabs-tech/locator/internal/location"
)

const (
	fixKeyPrefix = "locator:fix:"
	positionsKey = "locator:positions"
)

// Redis stores fixes as JSON under one key per provider, and mirrors the
// latest position of each provider into a geo set.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to redisURL and checks the connection. ttl bounds how
// long a fix is kept; zero keeps it forever.
func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func fixKey(p location.Provider) string {
	return fixKeyPrefix + string(p)
}

func (r *Redis) Put(ctx context.Context, p location.Provider, fix location.Fix) error {
	data, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, fixKey(p), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", p, err)
	}

	_, err = r.client.GeoAdd(ctx, positionsKey, &redis.GeoLocation{
		Name:      string(p),
		Longitude: fix.Longitude,
		Latitude:  fix.Latitude,
	}).Result()
	if err != nil {
		// the per-provider key is authoritative; the geo set is best effort
		log.Printf("store: redis geoAdd failed: %v", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, p location.Provider) (*location.Fix, error) {
	data, err := r.client.Get(ctx, fixKey(p)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", p, err)
	}

	var fix location.Fix
	if err := json.Unmarshal(data, &fix); err != nil {
		return nil, fmt.Errorf("decode %s fix: %w", p, err)
	}
	return &fix, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
