package tests

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"bahon/internal/domain"
	"bahon/internal/redis"
	"bahon/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK LEDGER REPOSITORY
// ──────────────────────────────────────────────

// MockLedgerRepository is a mock implementation of LedgerRepository.
type MockLedgerRepository struct {
	mu      sync.RWMutex
	samples map[string]map[uint64]*domain.LocationSample

	// Counters for verification
	AppendCallCount int32
	RangeCallCount  int32

	// Error injection
	AppendError error
	LatestError error
	RangeError  error

	// ConflictsToInject makes the next N appends fail with ErrConflict.
	ConflictsToInject int32
}

// NewMockLedgerRepository creates a new mock ledger repository.
func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{
		samples: make(map[string]map[uint64]*domain.LocationSample),
	}
}

// AddSample stores a sample directly (for test setup).
func (m *MockLedgerRepository) AddSample(sample *domain.LocationSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(sample)
}

func (m *MockLedgerRepository) put(sample *domain.LocationSample) {
	byVehicle, ok := m.samples[sample.VehicleID]
	if !ok {
		byVehicle = make(map[uint64]*domain.LocationSample)
		m.samples[sample.VehicleID] = byVehicle
	}
	copy := *sample
	byVehicle[sample.SequenceNo] = &copy
}

func (m *MockLedgerRepository) Append(ctx context.Context, sample *domain.LocationSample) error {
	atomic.AddInt32(&m.AppendCallCount, 1)
	if m.AppendError != nil {
		return m.AppendError
	}
	if atomic.AddInt32(&m.ConflictsToInject, -1) >= 0 {
		return repository.ErrConflict
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.samples[sample.VehicleID][sample.SequenceNo]; exists {
		return repository.ErrConflict
	}
	m.put(sample)
	return nil
}

func (m *MockLedgerRepository) Latest(ctx context.Context, vehicleID string) (*domain.LocationSample, error) {
	if m.LatestError != nil {
		return nil, m.LatestError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.LocationSample
	for _, s := range m.samples[vehicleID] {
		if latest == nil || s.SequenceNo > latest.SequenceNo {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	copy := *latest
	return &copy, nil
}

func (m *MockLedgerRepository) Get(ctx context.Context, vehicleID string, sequenceNo uint64) (*domain.LocationSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sample, ok := m.samples[vehicleID][sequenceNo]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *sample
	return &copy, nil
}

func (m *MockLedgerRepository) Range(ctx context.Context, vehicleID string, from, to uint64) ([]*domain.LocationSample, error) {
	atomic.AddInt32(&m.RangeCallCount, 1)
	if m.RangeError != nil {
		return nil, m.RangeError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.LocationSample, 0)
	for seq, s := range m.samples[vehicleID] {
		if seq >= from && seq <= to {
			copy := *s
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SequenceNo < result[j].SequenceNo })
	return result, nil
}

// All returns every sample of a vehicle ordered by sequence number.
func (m *MockLedgerRepository) All(vehicleID string) []*domain.LocationSample {
	samples, _ := m.Range(context.Background(), vehicleID, 0, ^uint64(0))
	return samples
}

// ──────────────────────────────────────────────
// MOCK ACCOUNT REPOSITORY
// ──────────────────────────────────────────────

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	// Counters
	UpdateCallCount       int32
	SetOnJourneyCallCount int32

	// Error injection
	UpdateError       error
	SetOnJourneyError error

	// ConflictsToInject makes the next N updates fail with ErrConflict.
	ConflictsToInject int32
}

// NewMockAccountRepository creates a new mock account repository.
func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

// AddAccount adds an account to the mock repository.
func (m *MockAccountRepository) AddAccount(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *account
	m.accounts[account.RiderID] = &copy
}

func (m *MockAccountRepository) GetByID(ctx context.Context, riderID string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[riderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *account
	return &copy, nil
}

func (m *MockAccountRepository) GetByCardID(ctx context.Context, cardID string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.CardID == cardID {
			copy := *a
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockAccountRepository) GetByIDForUpdate(ctx context.Context, riderID string) (*domain.Account, error) {
	return m.GetByID(ctx, riderID)
}

func (m *MockAccountRepository) Update(ctx context.Context, account *domain.Account) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if atomic.AddInt32(&m.ConflictsToInject, -1) >= 0 {
		return repository.ErrConflict
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.accounts[account.RiderID]
	if !ok || stored.Version != account.Version {
		return repository.ErrConflict
	}
	account.Version++
	copy := *account
	m.accounts[account.RiderID] = &copy
	return nil
}

func (m *MockAccountRepository) SetOnJourney(ctx context.Context, riderID string, onJourney bool) error {
	atomic.AddInt32(&m.SetOnJourneyCallCount, 1)
	if m.SetOnJourneyError != nil {
		return m.SetOnJourneyError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[riderID]
	if !ok {
		return repository.ErrNotFound
	}
	account.OnJourney = onJourney
	return nil
}

// GetAccount returns the stored account (for test assertions).
func (m *MockAccountRepository) GetAccount(riderID string) *domain.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[riderID]
	if !ok {
		return nil
	}
	copy := *account
	return &copy
}

func (m *MockAccountRepository) snapshot() map[string]domain.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]domain.Account, len(m.accounts))
	for id, a := range m.accounts {
		snap[id] = *a
	}
	return snap
}

func (m *MockAccountRepository) restore(snap map[string]domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = make(map[string]*domain.Account, len(snap))
	for id, a := range snap {
		a := a
		m.accounts[id] = &a
	}
}

// ──────────────────────────────────────────────
// MOCK JOURNEY REPOSITORY
// ──────────────────────────────────────────────

// MockJourneyRepository is a mock implementation of JourneyRepository.
type MockJourneyRepository struct {
	mu       sync.RWMutex
	journeys []*domain.JourneyRecord

	// Counters
	CreateCallCount int32

	// Error injection
	CreateError error
}

// NewMockJourneyRepository creates a new mock journey repository.
func NewMockJourneyRepository() *MockJourneyRepository {
	return &MockJourneyRepository{}
}

func (m *MockJourneyRepository) Create(ctx context.Context, journey *domain.JourneyRecord) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.journeys {
		if j.ID == journey.ID {
			return ErrMockDBConstraint
		}
	}
	copy := *journey
	m.journeys = append(m.journeys, &copy)
	return nil
}

func (m *MockJourneyRepository) ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.JourneyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.JourneyRecord
	for _, j := range m.journeys {
		if j.RiderID == riderID {
			copy := *j
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, k int) bool { return result[i].ExitTime.After(result[k].ExitTime) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CountJourneys returns the number of stored journeys.
func (m *MockJourneyRepository) CountJourneys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.journeys)
}

func (m *MockJourneyRepository) snapshot() []*domain.JourneyRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.JourneyRecord(nil), m.journeys...)
}

func (m *MockJourneyRepository) restore(snap []*domain.JourneyRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journeys = snap
}

// ──────────────────────────────────────────────
// MOCK FARE REPOSITORY
// ──────────────────────────────────────────────

// MockFareRepository is a mock implementation of FareRepository.
type MockFareRepository struct {
	mu        sync.Mutex
	farePerKm decimal.Decimal

	// Counters
	CurrentCallCount int32

	// Error injection
	CurrentError error
}

// NewMockFareRepository creates a fare repository returning farePerKm.
func NewMockFareRepository(farePerKm decimal.Decimal) *MockFareRepository {
	return &MockFareRepository{farePerKm: farePerKm}
}

func (m *MockFareRepository) Current(ctx context.Context, at time.Time) (decimal.Decimal, error) {
	atomic.AddInt32(&m.CurrentCallCount, 1)
	if m.CurrentError != nil {
		return decimal.Zero, m.CurrentError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.farePerKm, nil
}

// ──────────────────────────────────────────────
// MOCK TX MANAGER
// ──────────────────────────────────────────────

// MockTxManager runs settlement work against the account and journey mocks
// and restores both when the work fails.
type MockTxManager struct {
	mu       sync.Mutex
	accounts *MockAccountRepository
	journeys *MockJourneyRepository

	// Counters
	CommitCount   int32
	RollbackCount int32
}

// NewMockTxManager creates a new mock transaction manager.
func NewMockTxManager(accounts *MockAccountRepository, journeys *MockJourneyRepository) *MockTxManager {
	return &MockTxManager{accounts: accounts, journeys: journeys}
}

func (m *MockTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, stores repository.SettlementStores) error) error {
	// One transaction at a time stands in for the row lock.
	m.mu.Lock()
	defer m.mu.Unlock()

	accountSnap := m.accounts.snapshot()
	journeySnap := m.journeys.snapshot()

	err := fn(ctx, repository.SettlementStores{Accounts: m.accounts, Journeys: m.journeys})
	if err != nil {
		m.accounts.restore(accountSnap)
		m.journeys.restore(journeySnap)
		atomic.AddInt32(&m.RollbackCount, 1)
		return err
	}

	atomic.AddInt32(&m.CommitCount, 1)
	return nil
}

// ──────────────────────────────────────────────
// MOCK BOARDING STORE
// ──────────────────────────────────────────────

// MockBoardingStore is a mock implementation of BoardingStore.
type MockBoardingStore struct {
	mu      sync.Mutex
	records map[string]*domain.BoardingRecord

	// Error injection
	CreateError error
	TakeError   error
}

// NewMockBoardingStore creates a new mock boarding store.
func NewMockBoardingStore() *MockBoardingStore {
	return &MockBoardingStore{
		records: make(map[string]*domain.BoardingRecord),
	}
}

func (m *MockBoardingStore) Create(ctx context.Context, record *domain.BoardingRecord) (bool, error) {
	if m.CreateError != nil {
		return false, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.RiderID]; exists {
		return false, nil
	}
	copy := *record
	m.records[record.RiderID] = &copy
	return true, nil
}

func (m *MockBoardingStore) Get(ctx context.Context, riderID string) (*domain.BoardingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[riderID]
	if !ok {
		return nil, nil
	}
	copy := *record
	return &copy, nil
}

func (m *MockBoardingStore) Take(ctx context.Context, riderID string) (*domain.BoardingRecord, error) {
	if m.TakeError != nil {
		return nil, m.TakeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[riderID]
	if !ok {
		return nil, nil
	}
	delete(m.records, riderID)
	return record, nil
}

func (m *MockBoardingStore) Remove(ctx context.Context, riderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, riderID)
	return nil
}

// IsOnBoard reports whether a record exists for the rider.
func (m *MockBoardingStore) IsOnBoard(riderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[riderID]
	return ok
}

// CountRecords returns the number of boarding records.
func (m *MockBoardingStore) CountRecords() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string
	next  int64

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]string),
	}
}

func (m *MockLockStore) AcquireRiderLock(ctx context.Context, riderID string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return "", false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[riderID]; held {
		return "", false, nil
	}
	m.next++
	token := strconv.FormatInt(m.next, 10)
	m.locks[riderID] = token
	return token, true, nil
}

func (m *MockLockStore) ReleaseRiderLock(ctx context.Context, riderID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[riderID] != token {
		return redis.ErrLockNotHeld
	}
	delete(m.locks, riderID)
	return nil
}

// IsLocked checks if a rider is locked (for test assertions).
func (m *MockLockStore) IsLocked(riderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[riderID]
	return held
}

// ──────────────────────────────────────────────
// MOCK DEDUPE STORE
// ──────────────────────────────────────────────

// MockDedupeStore is a mock implementation of DedupeStore.
type MockDedupeStore struct {
	mu   sync.Mutex
	seen map[string]bool

	// Error injection
	MarkSeenError error
}

// NewMockDedupeStore creates a new mock dedupe store.
func NewMockDedupeStore() *MockDedupeStore {
	return &MockDedupeStore{seen: make(map[string]bool)}
}

func (m *MockDedupeStore) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.MarkSeenError != nil {
		return false, m.MarkSeenError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *MockDedupeStore) Forget(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
	return nil
}

// CountKeys returns the number of remembered keys.
func (m *MockDedupeStore) CountKeys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// ──────────────────────────────────────────────
// MOCK GEOCODER
// ──────────────────────────────────────────────

// MockGeocoder returns fixed names per point and "Unknown" otherwise.
type MockGeocoder struct {
	mu    sync.Mutex
	names map[domain.Point]string

	// Counters
	CallCount int32
}

// NewMockGeocoder creates a new mock geocoder.
func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{names: make(map[domain.Point]string)}
}

// SetName registers the place name for a point.
func (m *MockGeocoder) SetName(lat, lon float64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[domain.Point{Lat: lat, Lon: lon}] = name
}

func (m *MockGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	atomic.AddInt32(&m.CallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if name, ok := m.names[domain.Point{Lat: lat, Lon: lon}]; ok {
		return name
	}
	return domain.UnknownPlace
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// PublishedMessage is a message captured by MockPublisher.
type PublishedMessage struct {
	Topic   string
	Message any
}

// MockPublisher records published events.
type MockPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(topic string, message any) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, PublishedMessage{Topic: topic, Message: message})
	return nil
}

// Messages returns the published messages.
func (m *MockPublisher) Messages() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage(nil), m.messages...)
}

// Ensure mocks implement the production interfaces.
var (
	_ repository.LedgerRepository  = (*MockLedgerRepository)(nil)
	_ repository.AccountRepository = (*MockAccountRepository)(nil)
	_ repository.JourneyRepository = (*MockJourneyRepository)(nil)
	_ repository.FareRepository    = (*MockFareRepository)(nil)
	_ repository.TxManager         = (*MockTxManager)(nil)
	_ redis.BoardingStoreInterface = (*MockBoardingStore)(nil)
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ redis.DedupeStoreInterface   = (*MockDedupeStore)(nil)
)

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)
