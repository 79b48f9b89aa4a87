package features

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Goodman667/NeuraSense/internal/logging"
)

// #region config

// RedisConfig builds the client for the latest-observation cache.
type RedisConfig struct {
	URL          string `envconfig:"REDIS_URL"`
	ReadTimeout  int    `envconfig:"REDIS_READ_TIMEOUT" default:"3"`
	WriteTimeout int    `envconfig:"REDIS_WRITE_TIMEOUT" default:"3"`
	DialTimeout  int    `envconfig:"REDIS_DIAL_TIMEOUT" default:"5"`
}

// New connects and pings. Callers treat an empty URL as "cache disabled".
func (c *RedisConfig) New(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ReadTimeout = time.Duration(c.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(c.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(c.DialTimeout) * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// #endregion config

// #region cached-source

// ObservationStore combines the observation read contract with check-in
// ingestion. *Store satisfies it.
type ObservationStore interface {
	ObservationSource
	RecordObservation(ctx context.Context, obs Observation) error
}

// CachedObservations is a read-through cache in front of an
// ObservationStore for the latest-observation contract only. Writes go
// through RecordObservation, which refreshes the cached head; windowed
// history always goes to the backing store. Cache errors degrade to the
// backing source.
type CachedObservations struct {
	backing ObservationStore
	client  *redis.Client
	ttl     time.Duration
}

// NewCachedObservations wraps backing with a redis cache.
func NewCachedObservations(backing ObservationStore, client *redis.Client, ttl time.Duration) *CachedObservations {
	return &CachedObservations{backing: backing, client: client, ttl: ttl}
}

func latestKey(userID string) string {
	return "checkin:latest:" + userID
}

// LatestObservation serves from cache when possible, filling on miss.
func (c *CachedObservations) LatestObservation(ctx context.Context, userID string, since time.Time) (*Observation, error) {
	data, err := c.client.Get(ctx, latestKey(userID)).Bytes()
	if err == nil {
		var obs Observation
		if jsonErr := json.Unmarshal(data, &obs); jsonErr == nil {
			if !obs.CreatedAt.Before(since) {
				return &obs, nil
			}
			// Cached value is older than the window; fall through.
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.Warn().Err(err).Msg("[FEATURES] redis read failed, falling back to store")
	}

	obs, err := c.backing.LatestObservation(ctx, userID, since)
	if err != nil || obs == nil {
		return obs, err
	}
	if data, jsonErr := json.Marshal(obs); jsonErr == nil {
		if setErr := c.client.Set(ctx, latestKey(userID), data, c.ttl).Err(); setErr != nil {
			logging.Warn().Err(setErr).Msg("[FEATURES] redis fill failed")
		}
	}
	return obs, nil
}

// Observations always reads the backing store; trend windows need the full
// history, not the cached head.
func (c *CachedObservations) Observations(ctx context.Context, userID string, since time.Time) ([]Observation, error) {
	return c.backing.Observations(ctx, userID, since)
}

// RecordObservation writes through to the backing store and refreshes the
// cached head, so the next decision sees this check-in without a store read.
// The timestamp is stamped here so the cached copy matches the stored row.
func (c *CachedObservations) RecordObservation(ctx context.Context, obs Observation) error {
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now().UTC()
	}
	if err := c.backing.RecordObservation(ctx, obs); err != nil {
		return err
	}

	data, err := json.Marshal(obs)
	if err != nil {
		return nil
	}
	if setErr := c.client.Set(ctx, latestKey(obs.UserID), data, c.ttl).Err(); setErr != nil {
		logging.Warn().Err(setErr).Msg("[FEATURES] redis head refresh failed, dropping cached value")
		if delErr := c.Invalidate(ctx, obs.UserID); delErr != nil {
			logging.Warn().Err(delErr).Msg("[FEATURES] redis head invalidation failed")
		}
	}
	return nil
}

// Invalidate drops the cached head for a user.
func (c *CachedObservations) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, latestKey(userID)).Err()
}

// #endregion cached-source
