package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	NSQ      NSQConfig
	Vehicle  VehicleConfig
	Fare     FareConfig
	Geocoder GeocoderConfig
	Ledger   LedgerConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// NSQConfig holds the event transport configuration.
type NSQConfig struct {
	Enabled               bool
	NSQDAddr              string
	LookupdAddrs          []string
	Channel               string
	LocationTopic         string
	ScanTopic             string
	SettlementFailedTopic string
}

// VehicleConfig identifies the single vehicle served by this deployment.
type VehicleConfig struct {
	ID string
}

// FareConfig holds fare settings used when the fare table cannot be read.
type FareConfig struct {
	DefaultPerKm float64
	CacheTTL     time.Duration
	TimeZone     string
}

// GeocoderConfig holds reverse geocoding settings.
type GeocoderConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration
}

// LedgerConfig holds ledger and event-processing settings.
type LedgerConfig struct {
	StoreTimeout   time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	DedupeTTL      time.Duration
	RiderLockTTL   time.Duration
	MaxRangeSpan   uint64
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("NEW_RELIC_APP_NAME"),
			LicenseKey: v.GetString("NEW_RELIC_LICENSE_KEY"),
			Enabled:    v.GetBool("NEW_RELIC_ENABLED"),
		},
		NSQ: NSQConfig{
			Enabled:               v.GetBool("NSQ_ENABLED"),
			NSQDAddr:              v.GetString("NSQD_ADDR"),
			LookupdAddrs:          v.GetStringSlice("NSQ_LOOKUPD_ADDRS"),
			Channel:               v.GetString("NSQ_CHANNEL"),
			LocationTopic:         v.GetString("NSQ_LOCATION_TOPIC"),
			ScanTopic:             v.GetString("NSQ_SCAN_TOPIC"),
			SettlementFailedTopic: v.GetString("NSQ_SETTLEMENT_FAILED_TOPIC"),
		},
		Vehicle: VehicleConfig{
			ID: v.GetString("VEHICLE_ID"),
		},
		Fare: FareConfig{
			DefaultPerKm: v.GetFloat64("FARE_DEFAULT_PER_KM"),
			CacheTTL:     v.GetDuration("FARE_CACHE_TTL"),
			TimeZone:     v.GetString("FARE_TIME_ZONE"),
		},
		Geocoder: GeocoderConfig{
			BaseURL:   v.GetString("GEOCODER_BASE_URL"),
			UserAgent: v.GetString("GEOCODER_USER_AGENT"),
			Timeout:   v.GetDuration("GEOCODER_TIMEOUT"),
			CacheTTL:  v.GetDuration("GEOCODER_CACHE_TTL"),
		},
		Ledger: LedgerConfig{
			StoreTimeout:   v.GetDuration("STORE_TIMEOUT"),
			MaxRetries:     v.GetInt("LEDGER_MAX_RETRIES"),
			RetryBaseDelay: v.GetDuration("LEDGER_RETRY_BASE_DELAY"),
			DedupeTTL:      v.GetDuration("EVENT_DEDUPE_TTL"),
			RiderLockTTL:   v.GetDuration("RIDER_LOCK_TTL"),
			MaxRangeSpan:   v.GetUint64("LEDGER_MAX_RANGE"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 10*time.Second)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "bahon")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("NEW_RELIC_APP_NAME", "bahon-fare-ledger")
	v.SetDefault("NEW_RELIC_LICENSE_KEY", "")
	v.SetDefault("NEW_RELIC_ENABLED", false)

	v.SetDefault("NSQ_ENABLED", false)
	v.SetDefault("NSQD_ADDR", "localhost:4150")
	v.SetDefault("NSQ_LOOKUPD_ADDRS", []string{})
	v.SetDefault("NSQ_CHANNEL", "fare-ledger")
	v.SetDefault("NSQ_LOCATION_TOPIC", "location.samples")
	v.SetDefault("NSQ_SCAN_TOPIC", "card.scans")
	v.SetDefault("NSQ_SETTLEMENT_FAILED_TOPIC", "settlement.failed")

	v.SetDefault("VEHICLE_ID", "bus-1")

	v.SetDefault("FARE_DEFAULT_PER_KM", 0.0)
	v.SetDefault("FARE_CACHE_TTL", 30*time.Second)
	v.SetDefault("FARE_TIME_ZONE", "UTC")

	v.SetDefault("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("GEOCODER_USER_AGENT", "bahon-fare-ledger/1.0")
	v.SetDefault("GEOCODER_TIMEOUT", 3*time.Second)
	v.SetDefault("GEOCODER_CACHE_TTL", 24*time.Hour)

	v.SetDefault("STORE_TIMEOUT", 5*time.Second)
	v.SetDefault("LEDGER_MAX_RETRIES", 5)
	v.SetDefault("LEDGER_RETRY_BASE_DELAY", 20*time.Millisecond)
	v.SetDefault("EVENT_DEDUPE_TTL", 24*time.Hour)
	v.SetDefault("RIDER_LOCK_TTL", 30*time.Second)
	v.SetDefault("LEDGER_MAX_RANGE", 1000)

	v.SetDefault("LOG_LEVEL", "info")
}
