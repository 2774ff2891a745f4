package service

import "errors"

var (
	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidCardID is returned when card ID is empty.
	ErrInvalidCardID = errors.New("invalid card id")

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrUnknownVehicle is returned for events from a vehicle this deployment does not serve.
	ErrUnknownVehicle = errors.New("unknown vehicle")

	// ErrInvalidRange is returned when a ledger range has from > to or is too wide.
	ErrInvalidRange = errors.New("invalid sequence range")

	// ErrNoLocationData is returned when a scan arrives before any location sample.
	ErrNoLocationData = errors.New("no location data")

	// ErrLedgerWriteFailed is returned when a sample could not be appended.
	ErrLedgerWriteFailed = errors.New("ledger write failed")

	// ErrSettlementFailed is returned when a completed ride could not be charged.
	ErrSettlementFailed = errors.New("settlement failed")

	// ErrRiderBusy is returned when another scan for the same rider is in progress.
	ErrRiderBusy = errors.New("rider busy")

	// ErrAlreadyOnBoard is returned when an entry finds an existing boarding record.
	ErrAlreadyOnBoard = errors.New("rider already on board")

	// ErrDuplicateEvent is returned for a re-delivered event that was already processed.
	ErrDuplicateEvent = errors.New("duplicate event")
)

// IsInvalidInput reports whether err is caused by a malformed or foreign event.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidLocation) ||
		errors.Is(err, ErrInvalidCardID) ||
		errors.Is(err, ErrInvalidRiderID) ||
		errors.Is(err, ErrUnknownVehicle) ||
		errors.Is(err, ErrInvalidRange)
}
