package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"bahon/internal/repository"
)

// FareRepository is a PostgreSQL implementation of repository.FareRepository.
type FareRepository struct {
	q Querier
}

// NewFareRepository creates a new PostgreSQL fare repository.
func NewFareRepository(db *sql.DB) *FareRepository {
	return &FareRepository{q: db}
}

// Current returns the fare per km of the latest row effective at the given time.
func (r *FareRepository) Current(ctx context.Context, at time.Time) (decimal.Decimal, error) {
	query := `
		SELECT fare_per_km
		FROM fare_config
		WHERE effective_from <= $1
		ORDER BY effective_from DESC
		LIMIT 1
	`

	var farePerKm decimal.Decimal
	if err := r.q.QueryRowContext(ctx, query, at).Scan(&farePerKm); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, repository.ErrNotFound
		}
		return decimal.Zero, err
	}

	return farePerKm, nil
}

// Ensure FareRepository implements repository.FareRepository.
var _ repository.FareRepository = (*FareRepository)(nil)
