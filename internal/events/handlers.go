package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"bahon/internal/domain"
	"bahon/internal/repository"
	"bahon/internal/service"
)

// SampleAppender appends location samples to the ledger.
type SampleAppender interface {
	AppendSample(ctx context.Context, req service.AppendSampleRequest) (*domain.LocationSample, error)
}

// ScanProcessor processes card scans.
type ScanProcessor interface {
	ProcessScan(ctx context.Context, event domain.ScanEvent) (*service.ScanOutcome, error)
}

// Ensure the services and producer fit their consumers.
var (
	_ SampleAppender         = (*service.LedgerService)(nil)
	_ ScanProcessor          = (*service.ScanProcessor)(nil)
	_ service.EventPublisher = (*Producer)(nil)
)

// LocationMessage is the payload of the location topic.
type LocationMessage struct {
	VehicleID  string    `json:"vehicle_id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ObservedAt time.Time `json:"observed_at"`
}

// ScanMessage is the payload of the scan topic.
type ScanMessage struct {
	VehicleID  string    `json:"vehicle_id"`
	CardID     string    `json:"card_id"`
	ObservedAt time.Time `json:"observed_at"`
}

// LocationHandler returns the handler for location samples.
func LocationHandler(ledger SampleAppender, logger logrus.FieldLogger) MessageHandler {
	return func(ctx context.Context, body []byte) error {
		var msg LocationMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			logger.WithError(err).Warn("Dropping malformed location message")
			return nil
		}

		sample, err := ledger.AppendSample(ctx, service.AppendSampleRequest{
			VehicleID:  msg.VehicleID,
			Lat:        msg.Lat,
			Lon:        msg.Lon,
			ObservedAt: msg.ObservedAt,
		})
		if err != nil {
			return settle(err, logger.WithField("vehicle_id", msg.VehicleID))
		}

		logger.WithFields(logrus.Fields{
			"vehicle_id":             sample.VehicleID,
			"sequence_no":            sample.SequenceNo,
			"cumulative_distance_km": sample.CumulativeDistanceKm,
		}).Debug("Location sample appended")
		return nil
	}
}

// ScanHandler returns the handler for card scans.
func ScanHandler(scans ScanProcessor, logger logrus.FieldLogger) MessageHandler {
	return func(ctx context.Context, body []byte) error {
		var msg ScanMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			logger.WithError(err).Warn("Dropping malformed scan message")
			return nil
		}

		outcome, err := scans.ProcessScan(ctx, domain.ScanEvent{
			VehicleID:  msg.VehicleID,
			CardID:     msg.CardID,
			ObservedAt: msg.ObservedAt,
		})
		if err != nil {
			return settle(err, logger.WithFields(logrus.Fields{"vehicle_id": msg.VehicleID, "card_id": msg.CardID}))
		}

		logger.WithFields(logrus.Fields{
			"rider_id":  outcome.RiderID,
			"direction": outcome.Direction,
		}).Info("Card scan processed")
		return nil
	}
}

// settle decides whether a failed message is dropped or requeued.
func settle(err error, log logrus.FieldLogger) error {
	if Terminal(err) {
		log.WithError(err).Warn("Dropping message")
		return nil
	}
	return err
}

// Terminal reports whether redelivering a message that failed with err
// cannot change the outcome.
func Terminal(err error) bool {
	return service.IsInvalidInput(err) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, service.ErrNoLocationData) ||
		errors.Is(err, service.ErrDuplicateEvent) ||
		errors.Is(err, service.ErrAlreadyOnBoard) ||
		errors.Is(err, service.ErrSettlementFailed)
}
