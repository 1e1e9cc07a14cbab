package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/backofficehq/backoffice/internal/models"
	"github.com/backofficehq/backoffice/internal/store"
)

const redisKeyPrefix = "principal:"

// negativeValue marks a cached lookup failure in Redis.
const negativeValue = "\x00negative"

// RedisPrincipalLookup wraps a PrincipalLookup with a Redis cache, sharing
// hits across server instances. Redis failures degrade to the inner lookup
// rather than failing the request.
type RedisPrincipalLookup struct {
	inner PrincipalLookup
	rdb   *redis.Client
	log   *logrus.Logger
}

// NewRedisPrincipalLookup creates a Redis-backed caching wrapper. It pings
// the server once so a misconfigured address fails at startup.
func NewRedisPrincipalLookup(ctx context.Context, inner PrincipalLookup, addr string, log *logrus.Logger) (*RedisPrincipalLookup, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}

	return &RedisPrincipalLookup{inner: inner, rdb: rdb, log: log}, nil
}

// Close releases the Redis connection.
func (c *RedisPrincipalLookup) Close() error {
	return c.rdb.Close()
}

// GetByAPIKey returns a cached actor or delegates to the inner lookup.
func (c *RedisPrincipalLookup) GetByAPIKey(ctx context.Context, apiKey string) (models.Actor, error) {
	key := redisKeyPrefix + store.HashAPIKey(apiKey)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == negativeValue {
			return models.Actor{}, ErrCachedNotFound
		}

		var actor models.Actor
		if err := json.Unmarshal([]byte(cached), &actor); err == nil {
			return actor, nil
		}

		// Corrupt entry; fall through to the inner lookup.
		c.rdb.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).Warn("redis principal cache read failed")
	}

	actor, err := c.inner.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if setErr := c.rdb.Set(ctx, key, negativeValue, negativeTTL).Err(); setErr != nil {
			c.log.WithError(setErr).Warn("redis principal cache write failed")
		}

		return models.Actor{}, err
	}

	payload, marshalErr := json.Marshal(actor)
	if marshalErr != nil {
		return actor, nil
	}

	if setErr := c.rdb.Set(ctx, key, payload, principalTTL).Err(); setErr != nil {
		c.log.WithError(setErr).Warn("redis principal cache write failed")
	}

	return actor, nil
}
