package redis

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bahon/internal/domain"
)

// BoardingStoreInterface defines the interface for boarding record operations.
type BoardingStoreInterface interface {
	Create(ctx context.Context, record *domain.BoardingRecord) (bool, error)
	Get(ctx context.Context, riderID string) (*domain.BoardingRecord, error)
	Take(ctx context.Context, riderID string) (*domain.BoardingRecord, error)
	Remove(ctx context.Context, riderID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireRiderLock(ctx context.Context, riderID string, ttl time.Duration) (string, bool, error)
	ReleaseRiderLock(ctx context.Context, riderID, token string) error
}

// DedupeStoreInterface defines the interface for event de-duplication.
type DedupeStoreInterface interface {
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// FareCacheInterface defines the interface for the fare cache.
type FareCacheInterface interface {
	GetFarePerKm(ctx context.Context) (decimal.Decimal, bool, error)
	SetFarePerKm(ctx context.Context, farePerKm decimal.Decimal, ttl time.Duration) error
}

// PlaceCacheInterface defines the interface for the place-name cache.
type PlaceCacheInterface interface {
	GetPlace(ctx context.Context, cell string) (string, bool, error)
	SetPlace(ctx context.Context, cell, name string, ttl time.Duration) error
}

// Ensure concrete types implement interfaces.
var (
	_ BoardingStoreInterface = (*BoardingStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ DedupeStoreInterface   = (*DedupeStore)(nil)
	_ FareCacheInterface     = (*CacheStore)(nil)
	_ PlaceCacheInterface    = (*CacheStore)(nil)
)
