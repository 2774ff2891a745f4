package repository

import (
	"context"

	"bahon/internal/domain"
)

// AccountRepository defines the persistence operations for rider accounts.
type AccountRepository interface {
	// GetByID retrieves an account by rider ID.
	GetByID(ctx context.Context, riderID string) (*domain.Account, error)

	// GetByCardID retrieves the account carrying the given card.
	GetByCardID(ctx context.Context, cardID string) (*domain.Account, error)

	// GetByIDForUpdate retrieves an account and locks it for the rest of the
	// enclosing transaction.
	GetByIDForUpdate(ctx context.Context, riderID string) (*domain.Account, error)

	// Update writes the monetary fields and journey flag if the stored version
	// still matches account.Version, then bumps the version.
	// Returns ErrConflict otherwise.
	Update(ctx context.Context, account *domain.Account) error

	// SetOnJourney sets the journey flag.
	SetOnJourney(ctx context.Context, riderID string, onJourney bool) error
}
