package domain

import "time"

// BoardingState represents whether a rider is currently on the vehicle.
type BoardingState string

const (
	BoardingStateOffBoard BoardingState = "OFF_BOARD"
	BoardingStateOnBoard  BoardingState = "ON_BOARD"
)

// ScanDirection classifies a processed card scan.
type ScanDirection string

const (
	ScanDirectionEntry ScanDirection = "ENTRY"
	ScanDirectionExit  ScanDirection = "EXIT"
)

// ScanEvent is a card scan observed on the vehicle.
type ScanEvent struct {
	VehicleID  string
	CardID     string
	ObservedAt time.Time
}

// BoardingRecord marks a rider as between entry and exit.
// At most one exists per rider.
type BoardingRecord struct {
	RiderID                   string    `json:"rider_id"`
	VehicleID                 string    `json:"vehicle_id"`
	EntrySequenceNo           uint64    `json:"entry_sequence_no"`
	EntryCumulativeDistanceKm float64   `json:"entry_cumulative_distance_km"`
	EntryLat                  float64   `json:"entry_lat"`
	EntryLon                  float64   `json:"entry_lon"`
	EntryTime                 time.Time `json:"entry_time"`
}
