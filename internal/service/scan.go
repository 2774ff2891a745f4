package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"bahon/internal/domain"
	"bahon/internal/geo"
	"bahon/internal/geocode"
	"bahon/internal/redis"
)

// ScanProcessor runs the full flow for one card scan: identity, boarding
// classification and, on exit, path reconstruction and settlement.
type ScanProcessor struct {
	vehicleID   string
	identity    *IdentityService
	ledger      LatestSampleReader
	boarding    *BoardingService
	journeys    *JourneyService
	settlement  *SettlementService
	geocoder    geocode.Geocoder
	notifier    *NotificationService
	dedupeStore redis.DedupeStoreInterface
	dedupeTTL   time.Duration
	logger      logrus.FieldLogger
	now         func() time.Time
}

// ScanProcessorDeps groups the collaborators of a ScanProcessor.
type ScanProcessorDeps struct {
	VehicleID   string
	Identity    *IdentityService
	Ledger      LatestSampleReader
	Boarding    *BoardingService
	Journeys    *JourneyService
	Settlement  *SettlementService
	Geocoder    geocode.Geocoder           // Optional: nil names every place "Unknown"
	Notifier    *NotificationService       // Optional
	DedupeStore redis.DedupeStoreInterface // Optional
	DedupeTTL   time.Duration
	Logger      logrus.FieldLogger
}

// NewScanProcessor creates a new ScanProcessor.
func NewScanProcessor(deps ScanProcessorDeps) *ScanProcessor {
	return &ScanProcessor{
		vehicleID:   deps.VehicleID,
		identity:    deps.Identity,
		ledger:      deps.Ledger,
		boarding:    deps.Boarding,
		journeys:    deps.Journeys,
		settlement:  deps.Settlement,
		geocoder:    deps.Geocoder,
		notifier:    deps.Notifier,
		dedupeStore: deps.DedupeStore,
		dedupeTTL:   deps.DedupeTTL,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// ScanOutcome describes what a processed scan did.
type ScanOutcome struct {
	Direction                 domain.ScanDirection
	RiderID                   string
	EntrySequenceNo           uint64
	EntryCumulativeDistanceKm float64
	Journey                   *domain.JourneyRecord   // Exit only
	Account                   *domain.Account         // Exit only
	Application               *domain.FareApplication // Exit only
}

// ProcessScan handles one card scan end to end.
func (s *ScanProcessor) ProcessScan(ctx context.Context, event domain.ScanEvent) (*ScanOutcome, error) {
	if event.VehicleID == "" || event.VehicleID != s.vehicleID {
		return nil, ErrUnknownVehicle
	}

	event.CardID = strings.TrimSpace(event.CardID)
	if event.CardID == "" {
		return nil, ErrInvalidCardID
	}

	log := s.logger.WithFields(logrus.Fields{"vehicle_id": event.VehicleID, "card_id": event.CardID})

	dedupeKey := ""
	if !event.ObservedAt.IsZero() && s.dedupeStore != nil {
		dedupeKey = fmt.Sprintf("scan:%s:%s:%d", event.VehicleID, event.CardID, event.ObservedAt.UnixNano())
		fresh, err := s.dedupeStore.MarkSeen(ctx, dedupeKey, s.dedupeTTL)
		if err != nil {
			return nil, fmt.Errorf("scan dedupe check: %w", err)
		}
		if !fresh {
			log.Info("Dropping re-delivered card scan")
			return nil, ErrDuplicateEvent
		}
	}

	if event.ObservedAt.IsZero() {
		event.ObservedAt = s.now()
	}
	event.ObservedAt = event.ObservedAt.UTC()

	outcome, err := s.process(ctx, event, log)
	if err != nil {
		// A settled-or-reported exit must not run again; everything else may.
		if dedupeKey != "" && !errors.Is(err, ErrSettlementFailed) {
			if ferr := s.dedupeStore.Forget(ctx, dedupeKey); ferr != nil {
				log.WithError(ferr).Warn("Failed to clear scan dedupe key")
			}
		}
		return nil, err
	}

	return outcome, nil
}

func (s *ScanProcessor) process(ctx context.Context, event domain.ScanEvent, log logrus.FieldLogger) (*ScanOutcome, error) {
	account, err := s.identity.ResolveByCard(ctx, event.CardID)
	if err != nil {
		return nil, err
	}

	log = log.WithField("rider_id", account.RiderID)

	var outcome *ScanOutcome
	err = s.boarding.WithRiderLock(ctx, account.RiderID, func(ctx context.Context) error {
		transition, err := s.boarding.HandleScan(ctx, event.VehicleID, account.RiderID, event.ObservedAt)
		if err != nil {
			return err
		}

		if transition.Direction == domain.ScanDirectionEntry {
			outcome = &ScanOutcome{
				Direction:                 domain.ScanDirectionEntry,
				RiderID:                   account.RiderID,
				EntrySequenceNo:           transition.Record.EntrySequenceNo,
				EntryCumulativeDistanceKm: transition.Record.EntryCumulativeDistanceKm,
			}
			return nil
		}

		outcome, err = s.completeJourney(ctx, transition.Record, event.ObservedAt, log)
		return err
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

func (s *ScanProcessor) completeJourney(ctx context.Context, record *domain.BoardingRecord, exitTime time.Time, log logrus.FieldLogger) (*ScanOutcome, error) {
	exitSample, err := s.ledger.LatestSample(ctx, record.VehicleID)
	if err != nil {
		s.restore(ctx, record, log)
		return nil, err
	}

	path, err := s.journeys.ReconstructPath(ctx, record.VehicleID, record.EntrySequenceNo, exitSample.SequenceNo)
	if err != nil {
		s.restore(ctx, record, log)
		return nil, err
	}

	distance := path.DistanceTravelledKm
	if !path.Complete {
		distance = geo.Round8(exitSample.CumulativeDistanceKm - record.EntryCumulativeDistanceKm)
	}
	if distance < 0 {
		log.WithField("distance_travelled_km", distance).Warn("Negative travelled distance, charging as computed")
	}

	// Each name comes from its own coordinates: the entry name from the
	// boarding record, never from the exit position.
	entryName, exitName := s.resolvePlaces(ctx, record, exitSample)

	req := SettleRequest{
		RiderID:             record.RiderID,
		VehicleID:           record.VehicleID,
		DistanceTravelledKm: distance,
		EntryTime:           record.EntryTime,
		ExitTime:            exitTime,
		EntryPointName:      entryName,
		ExitPointName:       exitName,
		EntrySequenceNo:     record.EntrySequenceNo,
		ExitSequenceNo:      exitSample.SequenceNo,
		Path:                path.Path,
	}

	result, err := s.settlement.Settle(ctx, req)
	if err != nil {
		if errors.Is(err, ErrSettlementFailed) {
			s.reportFailure(ctx, req, err)
		}
		return nil, err
	}

	return &ScanOutcome{
		Direction:                 domain.ScanDirectionExit,
		RiderID:                   record.RiderID,
		EntrySequenceNo:           record.EntrySequenceNo,
		EntryCumulativeDistanceKm: record.EntryCumulativeDistanceKm,
		Journey:                   result.Journey,
		Account:                   result.Account,
		Application:               &result.Application,
	}, nil
}

// resolvePlaces looks up the entry and exit names concurrently.
// Lookups never fail; they fall back to "Unknown".
func (s *ScanProcessor) resolvePlaces(ctx context.Context, record *domain.BoardingRecord, exitSample *domain.LocationSample) (string, string) {
	if s.geocoder == nil {
		return domain.UnknownPlace, domain.UnknownPlace
	}

	var entryName, exitName string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entryName = s.geocoder.ReverseGeocode(gctx, record.EntryLat, record.EntryLon)
		return nil
	})
	g.Go(func() error {
		exitName = s.geocoder.ReverseGeocode(gctx, exitSample.Lat, exitSample.Lon)
		return nil
	})
	_ = g.Wait()

	return entryName, exitName
}

func (s *ScanProcessor) restore(ctx context.Context, record *domain.BoardingRecord, log logrus.FieldLogger) {
	if err := s.boarding.Restore(ctx, record); err != nil {
		log.WithError(err).Error("Failed to restore boarding record after exit failure")
	}
}

func (s *ScanProcessor) reportFailure(ctx context.Context, req SettleRequest, cause error) {
	if txn := newrelic.FromContext(ctx); txn != nil {
		txn.NoticeError(cause)
	}

	if s.notifier == nil {
		return
	}

	failure := &domain.SettlementFailure{
		RiderID:             req.RiderID,
		VehicleID:           req.VehicleID,
		EntrySequenceNo:     req.EntrySequenceNo,
		ExitSequenceNo:      req.ExitSequenceNo,
		DistanceTravelledKm: req.DistanceTravelledKm,
		EntryTime:           req.EntryTime,
		ExitTime:            req.ExitTime,
		Reason:              cause.Error(),
		OccurredAt:          s.now().UTC(),
	}

	_ = s.notifier.NotifySettlementFailed(ctx, failure)
}
