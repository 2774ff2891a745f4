package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// FareRepository reads the fare configuration.
type FareRepository interface {
	// Current returns the fare per km in effect at the given time.
	// Returns ErrNotFound if no fare has been configured yet.
	Current(ctx context.Context, at time.Time) (decimal.Decimal, error)
}
