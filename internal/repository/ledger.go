package repository

import (
	"context"

	"bahon/internal/domain"
)

// LedgerRepository defines the persistence operations for the location ledger.
type LedgerRepository interface {
	// Append persists a new sample. Returns ErrConflict if the sequence number
	// is already taken for the vehicle.
	Append(ctx context.Context, sample *domain.LocationSample) error

	// Latest retrieves the sample with the highest sequence number.
	// Returns nil if the ledger is empty.
	Latest(ctx context.Context, vehicleID string) (*domain.LocationSample, error)

	// Get retrieves a sample by sequence number.
	Get(ctx context.Context, vehicleID string, sequenceNo uint64) (*domain.LocationSample, error)

	// Range retrieves samples with from <= sequence_no <= to, ordered by sequence number.
	Range(ctx context.Context, vehicleID string, from, to uint64) ([]*domain.LocationSample, error)
}
