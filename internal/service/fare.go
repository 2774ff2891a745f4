package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"bahon/internal/config"
	"bahon/internal/redis"
	"bahon/internal/repository"
)

// FareProvider returns the fare per km currently in effect.
type FareProvider interface {
	CurrentFarePerKm(ctx context.Context) decimal.Decimal
}

// Ensure FareService implements FareProvider.
var _ FareProvider = (*FareService)(nil)

// FareService reads the fare table through a Redis cache.
type FareService struct {
	fareRepo     repository.FareRepository
	cache        redis.FareCacheInterface
	cacheTTL     time.Duration
	defaultPerKm decimal.Decimal
	storeTimeout time.Duration
	logger       logrus.FieldLogger
	now          func() time.Time

	group singleflight.Group
}

// NewFareService creates a new FareService. cache may be nil.
func NewFareService(
	fareRepo repository.FareRepository,
	cache redis.FareCacheInterface,
	cfg config.FareConfig,
	storeTimeout time.Duration,
	logger logrus.FieldLogger,
) *FareService {
	return &FareService{
		fareRepo:     fareRepo,
		cache:        cache,
		cacheTTL:     cfg.CacheTTL,
		defaultPerKm: decimal.NewFromFloat(cfg.DefaultPerKm),
		storeTimeout: storeTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// CurrentFarePerKm returns the fare per km in effect now. Any failure to
// read it falls back to the configured default.
func (s *FareService) CurrentFarePerKm(ctx context.Context) decimal.Decimal {
	if s.cache != nil {
		fare, hit, err := s.cache.GetFarePerKm(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Fare cache read failed")
		} else if hit {
			return fare
		}
	}

	v, err, _ := s.group.Do("fare_per_km", func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		s.logger.WithError(err).WithField("default_fare_per_km", s.defaultPerKm.String()).
			Warn("Fare table unavailable, using default fare")
		return s.defaultPerKm
	}

	return v.(decimal.Decimal)
}

func (s *FareService) load(ctx context.Context) (decimal.Decimal, error) {
	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	fare, err := s.fareRepo.Current(storeCtx, s.now())
	if err != nil {
		return decimal.Zero, err
	}

	if s.cache != nil {
		if err := s.cache.SetFarePerKm(ctx, fare, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Fare cache write failed")
		}
	}

	return fare, nil
}
