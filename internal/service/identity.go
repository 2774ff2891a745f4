package service

import (
	"context"
	"strings"
	"time"

	"bahon/internal/domain"
	"bahon/internal/repository"
)

// IdentityService maps identity cards to rider accounts.
type IdentityService struct {
	accountRepo  repository.AccountRepository
	storeTimeout time.Duration
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(accountRepo repository.AccountRepository, storeTimeout time.Duration) *IdentityService {
	return &IdentityService{
		accountRepo:  accountRepo,
		storeTimeout: storeTimeout,
	}
}

// ResolveByCard returns the account holding cardID.
// Unknown cards return repository.ErrNotFound.
func (s *IdentityService) ResolveByCard(ctx context.Context, cardID string) (*domain.Account, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, ErrInvalidCardID
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.accountRepo.GetByCardID(storeCtx, cardID)
}

// GetAccount returns a rider's account.
func (s *IdentityService) GetAccount(ctx context.Context, riderID string) (*domain.Account, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.accountRepo.GetByID(storeCtx, riderID)
}
