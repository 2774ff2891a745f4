package repository

import (
	"context"

	"bahon/internal/domain"
)

// JourneyRepository defines the persistence operations for journey records.
type JourneyRepository interface {
	// Create persists a new journey record.
	Create(ctx context.Context, journey *domain.JourneyRecord) error

	// ListByRider retrieves a rider's journeys, newest first.
	ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.JourneyRecord, error)
}
