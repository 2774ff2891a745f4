package postgres

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bahon/internal/domain"
	"bahon/internal/repository"
)

var sampleRowColumns = []string{
	"vehicle_id", "sequence_no", "lat", "lon", "captured_at", "distance_from_previous_km", "cumulative_distance_km",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, mock
}

func TestLedgerRepository_Append(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLedgerRepository(db)
	capturedAt := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO location_samples").
		WithArgs("bus-1", int64(2), 12.01, 77.0, capturedAt, 1.11194927, 1.11194927).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(context.Background(), &domain.LocationSample{
		VehicleID:              "bus-1",
		SequenceNo:             2,
		Lat:                    12.01,
		Lon:                    77.0,
		CapturedAt:             capturedAt,
		DistanceFromPreviousKm: 1.11194927,
		CumulativeDistanceKm:   1.11194927,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_Append_DuplicateSequenceIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLedgerRepository(db)

	mock.ExpectExec("INSERT INTO location_samples").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Append(context.Background(), &domain.LocationSample{VehicleID: "bus-1", SequenceNo: 7})

	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_Latest_EmptyLedger(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLedgerRepository(db)

	mock.ExpectQuery("FROM location_samples").
		WithArgs("bus-1").
		WillReturnRows(sqlmock.NewRows(sampleRowColumns))

	sample, err := repo.Latest(context.Background(), "bus-1")

	require.NoError(t, err)
	assert.Nil(t, sample)
}

func TestLedgerRepository_Latest(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLedgerRepository(db)
	capturedAt := time.Now().UTC()

	mock.ExpectQuery("ORDER BY sequence_no DESC").
		WithArgs("bus-1").
		WillReturnRows(sqlmock.NewRows(sampleRowColumns).
			AddRow("bus-1", int64(42), 12.5, 77.5, capturedAt, 0.25, 17.0))

	sample, err := repo.Latest(context.Background(), "bus-1")

	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Equal(t, uint64(42), sample.SequenceNo)
	assert.Equal(t, 17.0, sample.CumulativeDistanceKm)
	assert.Equal(t, domain.Point{Lat: 12.5, Lon: 77.5}, sample.Point())
}

func TestLedgerRepository_Get_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLedgerRepository(db)

	mock.ExpectQuery("WHERE vehicle_id = \\$1 AND sequence_no = \\$2").
		WithArgs("bus-1", int64(9)).
		WillReturnRows(sqlmock.NewRows(sampleRowColumns))

	_, err := repo.Get(context.Background(), "bus-1", 9)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLedgerRepository_Range(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLedgerRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("BETWEEN \\$2 AND \\$3").
		WithArgs("bus-1", int64(3), int64(5)).
		WillReturnRows(sqlmock.NewRows(sampleRowColumns).
			AddRow("bus-1", int64(3), 12.0, 77.0, now, 0.0, 5.0).
			AddRow("bus-1", int64(5), 12.1, 77.0, now, 11.1, 16.1))

	samples, err := repo.Range(context.Background(), "bus-1", 3, 5)

	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, uint64(3), samples[0].SequenceNo)
	assert.Equal(t, uint64(5), samples[1].SequenceNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_Range_HugeBoundsAreClamped(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLedgerRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("BETWEEN \\$2 AND \\$3").
		WithArgs("bus-1", int64(1), int64(math.MaxInt64)).
		WillReturnRows(sqlmock.NewRows(sampleRowColumns).
			AddRow("bus-1", int64(1), 12.0, 77.0, now, 0.0, 0.0))

	samples, err := repo.Range(context.Background(), "bus-1", 1, math.MaxUint64)

	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, uint64(1), samples[0].SequenceNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_Range_WideBoundsDoNotPresize(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLedgerRepository(db)

	mock.ExpectQuery("BETWEEN \\$2 AND \\$3").
		WithArgs("bus-1", int64(1), int64(1<<40)).
		WillReturnRows(sqlmock.NewRows(sampleRowColumns))

	samples, err := repo.Range(context.Background(), "bus-1", 1, 1<<40)

	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.LessOrEqual(t, cap(samples), maxRangePresize)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_Range_InvertedBoundsSkipsQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLedgerRepository(db)

	samples, err := repo.Range(context.Background(), "bus-1", 5, 2)

	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.NoError(t, mock.ExpectationsWereMet())
}
