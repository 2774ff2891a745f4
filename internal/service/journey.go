package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bahon/internal/domain"
	"bahon/internal/geo"
	"bahon/internal/repository"
)

// SampleRangeReader reads a contiguous slice of the ledger.
type SampleRangeReader interface {
	SamplesBetween(ctx context.Context, vehicleID string, from, to uint64) ([]*domain.LocationSample, error)
}

// Ensure LedgerService implements SampleRangeReader.
var _ SampleRangeReader = (*LedgerService)(nil)

// JourneyService rebuilds ride paths and lists completed journeys.
type JourneyService struct {
	ledger       SampleRangeReader
	journeyRepo  repository.JourneyRepository
	storeTimeout time.Duration
	logger       logrus.FieldLogger
}

// NewJourneyService creates a new JourneyService.
func NewJourneyService(
	ledger SampleRangeReader,
	journeyRepo repository.JourneyRepository,
	storeTimeout time.Duration,
	logger logrus.FieldLogger,
) *JourneyService {
	return &JourneyService{
		ledger:       ledger,
		journeyRepo:  journeyRepo,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// PathResult is a reconstructed ride path.
type PathResult struct {
	Path                []domain.Point
	DistanceTravelledKm float64
	// Complete is true when both endpoint samples were read and
	// DistanceTravelledKm is their cumulative difference.
	Complete bool
	Entry    *domain.LocationSample
	Exit     *domain.LocationSample
	Missing  []uint64
}

// ReconstructPath returns the ordered points between two ledger positions,
// inclusive, and the distance travelled between them.
func (s *JourneyService) ReconstructPath(ctx context.Context, vehicleID string, entrySeq, exitSeq uint64) (*PathResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"vehicle_id":        vehicleID,
		"entry_sequence_no": entrySeq,
		"exit_sequence_no":  exitSeq,
	})

	if entrySeq > exitSeq {
		log.Warn("Entry position is after exit position, returning empty path")
		return &PathResult{Path: []domain.Point{}}, nil
	}

	samples, err := s.ledger.SamplesBetween(ctx, vehicleID, entrySeq, exitSeq)
	if err != nil {
		return nil, err
	}

	result := &PathResult{Path: make([]domain.Point, 0, len(samples))}

	expected := entrySeq
	for _, sample := range samples {
		for ; expected < sample.SequenceNo; expected++ {
			result.Missing = append(result.Missing, expected)
		}
		expected = sample.SequenceNo + 1

		result.Path = append(result.Path, sample.Point())

		if sample.SequenceNo == entrySeq {
			result.Entry = sample
		}
		if sample.SequenceNo == exitSeq {
			result.Exit = sample
		}
	}
	for ; expected <= exitSeq; expected++ {
		result.Missing = append(result.Missing, expected)
	}

	if len(result.Missing) > 0 {
		log.WithField("missing", result.Missing).Warn("Ledger gaps in journey path, skipping")
	}

	if result.Entry != nil && result.Exit != nil {
		result.Complete = true
		result.DistanceTravelledKm = geo.Round8(result.Exit.CumulativeDistanceKm - result.Entry.CumulativeDistanceKm)
		if result.DistanceTravelledKm < 0 {
			log.WithField("distance_travelled_km", result.DistanceTravelledKm).Warn("Negative travelled distance")
		}
	}

	return result, nil
}

// ListJourneys returns a rider's journeys, newest first.
func (s *JourneyService) ListJourneys(ctx context.Context, riderID string, limit int) ([]*domain.JourneyRecord, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	journeys, err := s.journeyRepo.ListByRider(storeCtx, riderID, limit)
	if err != nil {
		return nil, err
	}
	if journeys == nil {
		journeys = []*domain.JourneyRecord{}
	}

	return journeys, nil
}
