package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Key prefixes
const (
	fareCacheKey     = "cache:fare"
	placeCachePrefix = "cache:place:"
)

// CacheStore handles lookup caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetFarePerKm retrieves the cached fare per km.
// The bool is false on a cache miss.
func (s *CacheStore) GetFarePerKm(ctx context.Context) (decimal.Decimal, bool, error) {
	raw, err := s.client.Get(ctx, fareCacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}

	farePerKm, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, err
	}
	return farePerKm, true, nil
}

// SetFarePerKm stores the fare per km.
func (s *CacheStore) SetFarePerKm(ctx context.Context, farePerKm decimal.Decimal, ttl time.Duration) error {
	return s.client.Set(ctx, fareCacheKey, farePerKm.String(), ttl).Err()
}

// GetPlace retrieves a cached place name for a geohash cell.
func (s *CacheStore) GetPlace(ctx context.Context, cell string) (string, bool, error) {
	name, err := s.client.Get(ctx, placeCachePrefix+cell).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil // Cache miss
		}
		return "", false, err
	}
	return name, true, nil
}

// SetPlace stores a place name for a geohash cell.
func (s *CacheStore) SetPlace(ctx context.Context, cell, name string, ttl time.Duration) error {
	return s.client.Set(ctx, placeCachePrefix+cell, name, ttl).Err()
}
