package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownPlace is the place name used when reverse geocoding fails.
const UnknownPlace = "Unknown"

// JourneyRecord is the immutable record of one completed ride.
type JourneyRecord struct {
	ID                  string
	RiderID             string
	VehicleID           string
	EntryTime           time.Time
	ExitTime            time.Time
	EntryPointName      string
	ExitPointName       string
	EntrySequenceNo     uint64
	ExitSequenceNo      uint64
	DistanceTravelledKm float64
	Fare                decimal.Decimal
	FarePerKm           decimal.Decimal
	TotalTimeMinutes    float64
	Path                []Point
	CreatedAt           time.Time
}

// SettlementFailure is reported when a completed ride could not be charged.
type SettlementFailure struct {
	RiderID             string    `json:"rider_id"`
	VehicleID           string    `json:"vehicle_id"`
	EntrySequenceNo     uint64    `json:"entry_sequence_no"`
	ExitSequenceNo      uint64    `json:"exit_sequence_no"`
	DistanceTravelledKm float64   `json:"distance_travelled_km"`
	EntryTime           time.Time `json:"entry_time"`
	ExitTime            time.Time `json:"exit_time"`
	Reason              string    `json:"reason"`
	OccurredAt          time.Time `json:"occurred_at"`
}
