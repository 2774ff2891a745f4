package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm_IdenticalPointsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, DistanceKm(0, 0, 0, 0))

	points := [][2]float64{{12.9716, 77.5946}, {-33.8688, 151.2093}, {89.9, -179.9}}
	for _, p := range points {
		assert.Equal(t, 0.0, DistanceKm(p[0], p[1], p[0], p[1]))
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	cases := [][4]float64{
		{12.0, 77.0, 12.01, 77.0},
		{51.5074, -0.1278, 48.8566, 2.3522},
		{-10, 170, 10, -170},
	}
	for _, c := range cases {
		ab := DistanceKm(c[0], c[1], c[2], c[3])
		ba := DistanceKm(c[2], c[3], c[0], c[1])
		assert.InDelta(t, ab, ba, 1e-9)
	}
}

func TestDistanceKm_OneHundredthDegreeLatitude(t *testing.T) {
	d := DistanceKm(12.0, 77.0, 12.01, 77.0)
	assert.InDelta(t, 1.11, d, 0.01)
}

func TestDistanceKm_KnownCityPair(t *testing.T) {
	// London to Paris is roughly 343.5 km on the great circle.
	d := DistanceKm(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 343.5, d, 1.0)
}

func TestDistanceKm_NaNPropagates(t *testing.T) {
	assert.True(t, math.IsNaN(DistanceKm(math.NaN(), 0, 0, 0)))
}

func TestRound8(t *testing.T) {
	assert.Equal(t, 1.11194927, Round8(1.111949266445587))
	assert.Equal(t, 0.0, Round8(0.000000001))
	assert.Equal(t, 5.0, Round8(5.0))
}

func TestValidCoordinate(t *testing.T) {
	testCases := []struct {
		name string
		lat  float64
		lon  float64
		want bool
	}{
		{"valid", 12.0, 77.0, true},
		{"poles and antimeridian", 90, -180, true},
		{"latitude too high", 90.1, 0, false},
		{"longitude too low", 0, -180.1, false},
		{"nan latitude", math.NaN(), 0, false},
		{"infinite longitude", 0, math.Inf(1), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidCoordinate(tc.lat, tc.lon))
		})
	}
}

func TestCell_StableAndPrecise(t *testing.T) {
	a := Cell(12.0, 77.0)
	assert.Len(t, a, CellPrecision)
	assert.Equal(t, a, Cell(12.0, 77.0))
	assert.NotEqual(t, a, Cell(12.01, 77.0))
	assert.Len(t, CellWithPrecision(12.0, 77.0, 7), 7)
}
