// Package geo holds the coordinate math used by the location ledger.
package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// CellPrecision is the geohash length used for sample dedupe keys (sub-metre cells).
const CellPrecision = 12

// DistanceKm returns the great-circle distance between two points using the
// haversine formula. NaN inputs propagate to the result.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Round8 rounds v to 8 decimal places.
func Round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

// ValidCoordinate reports whether lat/lon are finite and within range.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Cell returns the geohash of a point at CellPrecision.
func Cell(lat, lon float64) string {
	return geohash.EncodeWithPrecision(lat, lon, CellPrecision)
}

// CellWithPrecision returns the geohash of a point with the given length.
func CellWithPrecision(lat, lon float64, precision uint) string {
	return geohash.EncodeWithPrecision(lat, lon, precision)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
