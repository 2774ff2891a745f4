package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"bahon/internal/domain"
)

const boardingKeyPrefix = "boarding:"

// BoardingStore keeps one boarding record per rider while they are on board.
type BoardingStore struct {
	client *redis.Client
}

// NewBoardingStore creates a new BoardingStore.
func NewBoardingStore(client *redis.Client) *BoardingStore {
	return &BoardingStore{client: client}
}

// Create stores the record only if the rider has none.
// Returns false if a record already exists.
func (s *BoardingStore) Create(ctx context.Context, record *domain.BoardingRecord) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}

	// No expiry: the record lives until the exit scan takes it.
	return s.client.SetNX(ctx, boardingKeyPrefix+record.RiderID, data, 0).Result()
}

// Get returns the rider's boarding record, or nil if they are off board.
func (s *BoardingStore) Get(ctx context.Context, riderID string) (*domain.BoardingRecord, error) {
	data, err := s.client.Get(ctx, boardingKeyPrefix+riderID).Bytes()
	return decodeBoarding(data, err)
}

// Take deletes the rider's boarding record and returns it.
// Returns nil if there was nothing to take.
func (s *BoardingStore) Take(ctx context.Context, riderID string) (*domain.BoardingRecord, error) {
	data, err := s.client.GetDel(ctx, boardingKeyPrefix+riderID).Bytes()
	return decodeBoarding(data, err)
}

// Remove deletes the rider's boarding record if present.
func (s *BoardingStore) Remove(ctx context.Context, riderID string) error {
	return s.client.Del(ctx, boardingKeyPrefix+riderID).Err()
}

func decodeBoarding(data []byte, err error) (*domain.BoardingRecord, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var record domain.BoardingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
