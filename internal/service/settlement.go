package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bahon/internal/config"
	"bahon/internal/domain"
	"bahon/internal/repository"
	"bahon/internal/retry"
)

// SettlementService charges completed rides against rider accounts.
type SettlementService struct {
	txManager    repository.TxManager
	fares        FareProvider
	retrier      *retry.Retrier
	location     *time.Location
	storeTimeout time.Duration
	logger       logrus.FieldLogger
	now          func() time.Time
}

// NewSettlementService creates a new SettlementService. The reset period is
// computed in location; nil means UTC.
func NewSettlementService(
	txManager repository.TxManager,
	fares FareProvider,
	cfg config.LedgerConfig,
	location *time.Location,
	logger logrus.FieldLogger,
) *SettlementService {
	if location == nil {
		location = time.UTC
	}

	return &SettlementService{
		txManager: txManager,
		fares:     fares,
		retrier: retry.New(retry.Config{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			Multiplier: 2.0,
			Jitter:     true,
			Retryable: func(err error) bool {
				return errors.Is(err, repository.ErrConflict)
			},
		}, logger),
		location:     location,
		storeTimeout: cfg.StoreTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock replaces the clock used for the reset period and record timestamps.
func (s *SettlementService) SetClock(now func() time.Time) {
	s.now = now
}

// SettleRequest contains the parameters for settling a completed ride.
type SettleRequest struct {
	RiderID             string
	VehicleID           string
	DistanceTravelledKm float64
	EntryTime           time.Time
	ExitTime            time.Time
	EntryPointName      string
	ExitPointName       string
	EntrySequenceNo     uint64
	ExitSequenceNo      uint64
	Path                []domain.Point
}

// SettlementResult contains the outcome of a settlement.
type SettlementResult struct {
	Journey     *domain.JourneyRecord
	Account     *domain.Account
	Application domain.FareApplication
}

// Settle prices the ride and, in one transaction, charges the account and
// stores the journey record. Nothing is applied unless everything is.
func (s *SettlementService) Settle(ctx context.Context, req SettleRequest) (*SettlementResult, error) {
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}

	log := s.logger.WithFields(logrus.Fields{
		"rider_id":              req.RiderID,
		"vehicle_id":            req.VehicleID,
		"distance_travelled_km": req.DistanceTravelledKm,
	})

	farePerKm := s.fares.CurrentFarePerKm(ctx)
	fare := farePerKm.Mul(decimal.NewFromFloat(req.DistanceTravelledKm))

	now := s.now()
	month := domain.MonthKey(now.In(s.location))

	path := req.Path
	if path == nil {
		path = []domain.Point{}
	}

	journey := &domain.JourneyRecord{
		ID:                  uuid.New().String(),
		RiderID:             req.RiderID,
		VehicleID:           req.VehicleID,
		EntryTime:           req.EntryTime,
		ExitTime:            req.ExitTime,
		EntryPointName:      req.EntryPointName,
		ExitPointName:       req.ExitPointName,
		EntrySequenceNo:     req.EntrySequenceNo,
		ExitSequenceNo:      req.ExitSequenceNo,
		DistanceTravelledKm: req.DistanceTravelledKm,
		Fare:                fare,
		FarePerKm:           farePerKm,
		TotalTimeMinutes:    req.ExitTime.Sub(req.EntryTime).Minutes(),
		Path:                path,
		CreatedAt:           now.UTC(),
	}

	var result *SettlementResult
	err := s.retrier.Execute(ctx, func(ctx context.Context) error {
		txCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
		defer cancel()

		err := s.txManager.WithinTx(txCtx, func(ctx context.Context, stores repository.SettlementStores) error {
			account, err := stores.Accounts.GetByIDForUpdate(ctx, req.RiderID)
			if err != nil {
				return err
			}

			application := account.ApplyFare(fare, month)

			if err := stores.Journeys.Create(ctx, journey); err != nil {
				return err
			}

			if err := stores.Accounts.Update(ctx, account); err != nil {
				return err
			}

			result = &SettlementResult{
				Journey:     journey,
				Account:     account,
				Application: application,
			}
			return nil
		})
		if errors.Is(err, repository.ErrConflict) {
			log.Warn("Account version conflict, retrying settlement")
		}
		return err
	})
	if err != nil {
		log.WithError(err).Error("Settlement failed")
		return nil, fmt.Errorf("%w: %w", ErrSettlementFailed, err)
	}

	log.WithFields(logrus.Fields{
		"journey_id":    journey.ID,
		"fare":          fare.String(),
		"balance":       result.Account.Balance.String(),
		"bonus":         result.Account.Bonus.String(),
		"monthly_reset": result.Application.MonthlyReset,
		"bonus_granted": result.Application.BonusGranted,
	}).Info("Ride settled")

	return result, nil
}
