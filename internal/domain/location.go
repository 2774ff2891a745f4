package domain

import "time"

// LocationSample is one accepted row of the vehicle's location ledger.
type LocationSample struct {
	VehicleID              string
	SequenceNo             uint64
	Lat                    float64
	Lon                    float64
	CapturedAt             time.Time
	DistanceFromPreviousKm float64
	CumulativeDistanceKm   float64
}

// Point returns the sample position.
func (s *LocationSample) Point() Point {
	return Point{Lat: s.Lat, Lon: s.Lon}
}

// Point is a coordinate pair on a journey path.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
