package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "bus-1", cfg.Vehicle.ID)
	assert.Equal(t, "location.samples", cfg.NSQ.LocationTopic)
	assert.Equal(t, "card.scans", cfg.NSQ.ScanTopic)
	assert.Equal(t, 5*time.Second, cfg.Ledger.StoreTimeout)
	assert.Equal(t, "UTC", cfg.Fare.TimeZone)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("VEHICLE_ID", "bus-42")
	t.Setenv("FARE_DEFAULT_PER_KM", "12.5")
	t.Setenv("GEOCODER_TIMEOUT", "750ms")
	t.Setenv("NSQ_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "bus-42", cfg.Vehicle.ID)
	assert.InDelta(t, 12.5, cfg.Fare.DefaultPerKm, 1e-9)
	assert.Equal(t, 750*time.Millisecond, cfg.Geocoder.Timeout)
	assert.True(t, cfg.NSQ.Enabled)
}
