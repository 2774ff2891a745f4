package tests

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bahon/internal/config"
	"bahon/internal/domain"
	"bahon/internal/logging"
	"bahon/internal/service"
)

const testVehicle = "bus-1"

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		StoreTimeout:   time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		DedupeTTL:      time.Hour,
		RiderLockTTL:   5 * time.Second,
		MaxRangeSpan:   100,
	}
}

// harness wires the real services over in-memory mocks.
type harness struct {
	ledgerRepo    *MockLedgerRepository
	accounts      *MockAccountRepository
	journeys      *MockJourneyRepository
	fares         *MockFareRepository
	tx            *MockTxManager
	boardingStore *MockBoardingStore
	locks         *MockLockStore
	dedupe        *MockDedupeStore
	geocoder      *MockGeocoder
	publisher     *MockPublisher

	ledger     *service.LedgerService
	identity   *service.IdentityService
	boarding   *service.BoardingService
	journey    *service.JourneyService
	fare       *service.FareService
	settlement *service.SettlementService
	scans      *service.ScanProcessor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := logging.Discard()
	cfg := testLedgerConfig()

	h := &harness{
		ledgerRepo:    NewMockLedgerRepository(),
		accounts:      NewMockAccountRepository(),
		journeys:      NewMockJourneyRepository(),
		fares:         NewMockFareRepository(decimal.NewFromInt(10)),
		boardingStore: NewMockBoardingStore(),
		locks:         NewMockLockStore(),
		dedupe:        NewMockDedupeStore(),
		geocoder:      NewMockGeocoder(),
		publisher:     NewMockPublisher(),
	}
	h.tx = NewMockTxManager(h.accounts, h.journeys)

	h.ledger = service.NewLedgerService(testVehicle, cfg, h.ledgerRepo, h.dedupe, logger)
	h.identity = service.NewIdentityService(h.accounts, cfg.StoreTimeout)
	h.boarding = service.NewBoardingService(h.ledger, h.boardingStore, h.locks, h.accounts, cfg, logger)
	h.journey = service.NewJourneyService(h.ledger, h.journeys, cfg.StoreTimeout, logger)
	h.fare = service.NewFareService(h.fares, nil, config.FareConfig{DefaultPerKm: 8}, cfg.StoreTimeout, logger)
	h.settlement = service.NewSettlementService(h.tx, h.fare, cfg, time.UTC, logger)
	h.settlement.SetClock(func() time.Time { return fixedNow })

	h.scans = service.NewScanProcessor(service.ScanProcessorDeps{
		VehicleID:   testVehicle,
		Identity:    h.identity,
		Ledger:      h.ledger,
		Boarding:    h.boarding,
		Journeys:    h.journey,
		Settlement:  h.settlement,
		Geocoder:    h.geocoder,
		Notifier:    service.NewNotificationService(h.publisher, "settlement.failed", logger),
		DedupeStore: h.dedupe,
		DedupeTTL:   cfg.DedupeTTL,
		Logger:      logger,
	})

	return h
}

// addSample seeds the ledger with a sample at a given cumulative distance.
func (h *harness) addSample(seq uint64, lat, lon, cumulativeKm float64) {
	h.ledgerRepo.AddSample(&domain.LocationSample{
		VehicleID:            testVehicle,
		SequenceNo:           seq,
		Lat:                  lat,
		Lon:                  lon,
		CapturedAt:           fixedNow.Add(time.Duration(seq) * time.Minute),
		CumulativeDistanceKm: cumulativeKm,
	})
}

// addRider seeds an account in the current reset period.
func (h *harness) addRider(riderID, cardID string, balance int64) {
	h.accounts.AddAccount(&domain.Account{
		RiderID:                riderID,
		CardID:                 cardID,
		Name:                   "Rider " + riderID,
		Balance:                decimal.NewFromInt(balance),
		Bonus:                  decimal.Zero,
		TotalSpendCurrentMonth: decimal.Zero,
		LastResetMonth:         domain.MonthKey(fixedNow),
	})
}

func scanAt(cardID string, at time.Time) domain.ScanEvent {
	return domain.ScanEvent{VehicleID: testVehicle, CardID: cardID, ObservedAt: at}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("expected %s %s, got %s", name, want, got.String())
	}
}
