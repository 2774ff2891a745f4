package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bahon/internal/config"
	"bahon/internal/domain"
	"bahon/internal/geo"
	"bahon/internal/redis"
	"bahon/internal/repository"
	"bahon/internal/retry"
)

// defaultMaxRangeSpan bounds ListSamples when no span is configured.
const defaultMaxRangeSpan = 1000

// LedgerService appends and reads the vehicle's location ledger.
type LedgerService struct {
	vehicleID    string
	ledgerRepo   repository.LedgerRepository
	dedupeStore  redis.DedupeStoreInterface
	retrier      *retry.Retrier
	storeTimeout time.Duration
	dedupeTTL    time.Duration
	maxRangeSpan uint64
	logger       logrus.FieldLogger
	now          func() time.Time

	// mu makes this process the single writer for the vehicle.
	mu sync.Mutex
}

// NewLedgerService creates a new LedgerService. dedupeStore may be nil.
func NewLedgerService(
	vehicleID string,
	cfg config.LedgerConfig,
	ledgerRepo repository.LedgerRepository,
	dedupeStore redis.DedupeStoreInterface,
	logger logrus.FieldLogger,
) *LedgerService {
	return &LedgerService{
		vehicleID:   vehicleID,
		ledgerRepo:  ledgerRepo,
		dedupeStore: dedupeStore,
		retrier: retry.New(retry.Config{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			Multiplier: 2.0,
			Jitter:     true,
			Retryable: func(err error) bool {
				return errors.Is(err, repository.ErrConflict)
			},
		}, logger),
		storeTimeout: cfg.StoreTimeout,
		dedupeTTL:    cfg.DedupeTTL,
		maxRangeSpan: cfg.MaxRangeSpan,
		logger:       logger,
		now:          time.Now,
	}
}

// VehicleID returns the vehicle served by this ledger.
func (s *LedgerService) VehicleID() string {
	return s.vehicleID
}

// AppendSampleRequest contains the parameters for appending a location sample.
type AppendSampleRequest struct {
	VehicleID  string
	Lat        float64
	Lon        float64
	ObservedAt time.Time // Optional: zero uses the current time
}

// AppendSample validates a GPS sample and appends it to the ledger with the
// next sequence number and its incremental and cumulative distance.
func (s *LedgerService) AppendSample(ctx context.Context, req AppendSampleRequest) (*domain.LocationSample, error) {
	if err := s.checkVehicle(req.VehicleID); err != nil {
		return nil, err
	}

	if !geo.ValidCoordinate(req.Lat, req.Lon) {
		return nil, ErrInvalidLocation
	}

	capturedAt := req.ObservedAt
	if capturedAt.IsZero() {
		capturedAt = s.now()
	}
	capturedAt = capturedAt.UTC()

	log := s.logger.WithFields(logrus.Fields{"vehicle_id": req.VehicleID, "lat": req.Lat, "lon": req.Lon})

	// Samples without an observation time have no stable identity to dedupe on.
	dedupeKey := ""
	if !req.ObservedAt.IsZero() && s.dedupeStore != nil {
		dedupeKey = sampleDedupeKey(req)
		fresh, err := s.dedupeStore.MarkSeen(ctx, dedupeKey, s.dedupeTTL)
		switch {
		case err != nil:
			log.WithError(err).Warn("Sample dedupe check failed, appending anyway")
			dedupeKey = ""
		case !fresh:
			log.Info("Dropping re-delivered location sample")
			return nil, ErrDuplicateEvent
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var sample *domain.LocationSample
	err := s.retrier.Execute(ctx, func(ctx context.Context) error {
		var err error
		sample, err = s.appendOnce(ctx, req, capturedAt)
		if errors.Is(err, repository.ErrConflict) {
			log.Warn("Ledger write conflict, re-reading latest sample")
		}
		return err
	})
	if err != nil {
		if dedupeKey != "" {
			if ferr := s.dedupeStore.Forget(ctx, dedupeKey); ferr != nil {
				log.WithError(ferr).Warn("Failed to clear sample dedupe key")
			}
		}
		log.WithError(err).Error("Failed to append location sample")
		return nil, fmt.Errorf("%w: %w", ErrLedgerWriteFailed, err)
	}

	log.WithFields(logrus.Fields{
		"sequence_no":            sample.SequenceNo,
		"cumulative_distance_km": sample.CumulativeDistanceKm,
	}).Debug("Location sample appended")

	return sample, nil
}

func (s *LedgerService) appendOnce(ctx context.Context, req AppendSampleRequest, capturedAt time.Time) (*domain.LocationSample, error) {
	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	prev, err := s.ledgerRepo.Latest(storeCtx, req.VehicleID)
	if err != nil {
		return nil, err
	}

	sample := &domain.LocationSample{
		VehicleID:  req.VehicleID,
		SequenceNo: 1,
		Lat:        req.Lat,
		Lon:        req.Lon,
		CapturedAt: capturedAt,
	}

	if prev != nil {
		step := geo.Round8(geo.DistanceKm(prev.Lat, prev.Lon, req.Lat, req.Lon))
		sample.SequenceNo = prev.SequenceNo + 1
		sample.DistanceFromPreviousKm = step
		sample.CumulativeDistanceKm = geo.Round8(prev.CumulativeDistanceKm + step)
	}

	if err := s.ledgerRepo.Append(storeCtx, sample); err != nil {
		return nil, err
	}

	return sample, nil
}

// LatestSample returns the most recent sample.
// Returns ErrNoLocationData if the ledger is empty.
func (s *LedgerService) LatestSample(ctx context.Context, vehicleID string) (*domain.LocationSample, error) {
	if err := s.checkVehicle(vehicleID); err != nil {
		return nil, err
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	sample, err := s.ledgerRepo.Latest(storeCtx, vehicleID)
	if err != nil {
		return nil, err
	}
	if sample == nil {
		return nil, ErrNoLocationData
	}

	return sample, nil
}

// SampleAt returns the sample with the given sequence number.
func (s *LedgerService) SampleAt(ctx context.Context, vehicleID string, sequenceNo uint64) (*domain.LocationSample, error) {
	if err := s.checkVehicle(vehicleID); err != nil {
		return nil, err
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.ledgerRepo.Get(storeCtx, vehicleID, sequenceNo)
}

// SamplesBetween returns the samples with from <= sequence_no <= to,
// ordered by sequence number, in a single read.
func (s *LedgerService) SamplesBetween(ctx context.Context, vehicleID string, from, to uint64) ([]*domain.LocationSample, error) {
	if err := s.checkVehicle(vehicleID); err != nil {
		return nil, err
	}

	if from > to {
		return []*domain.LocationSample{}, nil
	}
	if to > math.MaxInt64 {
		return nil, ErrInvalidRange
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.ledgerRepo.Range(storeCtx, vehicleID, from, to)
}

// ListSamples serves a caller-supplied range. Unlike SamplesBetween it
// rejects inverted ranges and ranges wider than the configured span.
func (s *LedgerService) ListSamples(ctx context.Context, vehicleID string, from, to uint64) ([]*domain.LocationSample, error) {
	maxSpan := s.maxRangeSpan
	if maxSpan == 0 {
		maxSpan = defaultMaxRangeSpan
	}
	if from > to || to > math.MaxInt64 || to-from >= maxSpan {
		return nil, ErrInvalidRange
	}

	return s.SamplesBetween(ctx, vehicleID, from, to)
}

func (s *LedgerService) checkVehicle(vehicleID string) error {
	if vehicleID == "" || vehicleID != s.vehicleID {
		return ErrUnknownVehicle
	}
	return nil
}

func sampleDedupeKey(req AppendSampleRequest) string {
	return fmt.Sprintf("sample:%s:%d:%s", req.VehicleID, req.ObservedAt.UnixNano(), geo.Cell(req.Lat, req.Lon))
}
