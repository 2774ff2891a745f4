package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"bahon/internal/config"
	"bahon/internal/domain"
	"bahon/internal/redis"
	"bahon/internal/repository"
)

// LatestSampleReader reads the current position from the ledger.
type LatestSampleReader interface {
	LatestSample(ctx context.Context, vehicleID string) (*domain.LocationSample, error)
}

// Ensure LedgerService implements LatestSampleReader.
var _ LatestSampleReader = (*LedgerService)(nil)

// BoardingService classifies card scans as entries or exits.
type BoardingService struct {
	ledger        LatestSampleReader
	boardingStore redis.BoardingStoreInterface
	lockStore     redis.LockStoreInterface
	accountRepo   repository.AccountRepository
	lockTTL       time.Duration
	storeTimeout  time.Duration
	logger        logrus.FieldLogger
}

// NewBoardingService creates a new BoardingService.
func NewBoardingService(
	ledger LatestSampleReader,
	boardingStore redis.BoardingStoreInterface,
	lockStore redis.LockStoreInterface,
	accountRepo repository.AccountRepository,
	cfg config.LedgerConfig,
	logger logrus.FieldLogger,
) *BoardingService {
	return &BoardingService{
		ledger:        ledger,
		boardingStore: boardingStore,
		lockStore:     lockStore,
		accountRepo:   accountRepo,
		lockTTL:       cfg.RiderLockTTL,
		storeTimeout:  cfg.StoreTimeout,
		logger:        logger,
	}
}

// ScanTransition is the result of classifying a scan.
// For an entry Record is the new boarding record; for an exit it is the
// record that was removed.
type ScanTransition struct {
	Direction   domain.ScanDirection
	Record      *domain.BoardingRecord
	EntrySample *domain.LocationSample // Set on entry only
}

// WithRiderLock runs fn while holding the rider's lock.
// Returns ErrRiderBusy if another scan for the rider holds it.
func (s *BoardingService) WithRiderLock(ctx context.Context, riderID string, fn func(ctx context.Context) error) error {
	if riderID == "" {
		return ErrInvalidRiderID
	}

	token, ok, err := s.lockStore.AcquireRiderLock(ctx, riderID, s.lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRiderBusy
	}

	defer func() {
		// ctx may already be cancelled here.
		releaseCtx, cancel := withStoreTimeout(context.Background(), s.storeTimeout)
		defer cancel()

		if err := s.lockStore.ReleaseRiderLock(releaseCtx, riderID, token); err != nil {
			s.logger.WithError(err).WithField("rider_id", riderID).Warn("Failed to release rider lock")
		}
	}()

	return fn(ctx)
}

// HandleScan decides whether a scan is the rider's entry or exit and
// records the transition. Callers serialize scans per rider with WithRiderLock.
func (s *BoardingService) HandleScan(ctx context.Context, vehicleID, riderID string, observedAt time.Time) (*ScanTransition, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	log := s.logger.WithFields(logrus.Fields{"vehicle_id": vehicleID, "rider_id": riderID})

	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	existing, err := s.boardingStore.Take(storeCtx, riderID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		log.WithField("entry_sequence_no", existing.EntrySequenceNo).Info("Rider exit detected")
		return &ScanTransition{
			Direction: domain.ScanDirectionExit,
			Record:    existing,
		}, nil
	}

	latest, err := s.ledger.LatestSample(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, ErrNoLocationData) {
			log.Warn("Scan arrived before any location sample")
		}
		return nil, err
	}

	record := &domain.BoardingRecord{
		RiderID:                   riderID,
		VehicleID:                 vehicleID,
		EntrySequenceNo:           latest.SequenceNo,
		EntryCumulativeDistanceKm: latest.CumulativeDistanceKm,
		EntryLat:                  latest.Lat,
		EntryLon:                  latest.Lon,
		EntryTime:                 observedAt.UTC(),
	}

	created, err := s.boardingStore.Create(storeCtx, record)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrAlreadyOnBoard
	}

	if err := s.accountRepo.SetOnJourney(storeCtx, riderID, true); err != nil {
		if rerr := s.boardingStore.Remove(storeCtx, riderID); rerr != nil {
			log.WithError(rerr).Error("Failed to roll back boarding record")
		}
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"sequence_no":            record.EntrySequenceNo,
		"cumulative_distance_km": record.EntryCumulativeDistanceKm,
	}).Info("Rider entry recorded")

	return &ScanTransition{
		Direction:   domain.ScanDirectionEntry,
		Record:      record,
		EntrySample: latest,
	}, nil
}

// ActiveBoarding returns the rider's open boarding record, or nil when
// they are off board. It does not take the rider lock.
func (s *BoardingService) ActiveBoarding(ctx context.Context, riderID string) (*domain.BoardingRecord, error) {
	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.boardingStore.Get(storeCtx, riderID)
}

// Restore puts back a boarding record taken by an exit scan whose
// processing failed before settlement, so the exit can be retried.
func (s *BoardingService) Restore(ctx context.Context, record *domain.BoardingRecord) error {
	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	created, err := s.boardingStore.Create(storeCtx, record)
	if err != nil {
		return err
	}
	if !created {
		return ErrAlreadyOnBoard
	}
	return nil
}
