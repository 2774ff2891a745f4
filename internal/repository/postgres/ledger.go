package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"bahon/internal/domain"
	"bahon/internal/repository"
)

// LedgerRepository is a PostgreSQL implementation of repository.LedgerRepository.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{q: db}
}

// maxRangePresize caps the slice capacity Range reserves up front.
const maxRangePresize = 1024

const sampleColumns = `vehicle_id, sequence_no, lat, lon, captured_at, distance_from_previous_km, cumulative_distance_km`

// Append persists a new sample. The (vehicle_id, sequence_no) primary key
// rejects a second writer for the same position.
func (r *LedgerRepository) Append(ctx context.Context, sample *domain.LocationSample) error {
	query := `
		INSERT INTO location_samples (` + sampleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		sample.VehicleID,
		int64(sample.SequenceNo),
		sample.Lat,
		sample.Lon,
		sample.CapturedAt,
		sample.DistanceFromPreviousKm,
		sample.CumulativeDistanceKm,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return err
	}

	return nil
}

// Latest retrieves the sample with the highest sequence number.
// Returns nil if the ledger is empty.
func (r *LedgerRepository) Latest(ctx context.Context, vehicleID string) (*domain.LocationSample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM location_samples
		WHERE vehicle_id = $1
		ORDER BY sequence_no DESC
		LIMIT 1
	`

	sample, err := scanSample(r.q.QueryRowContext(ctx, query, vehicleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return sample, nil
}

// Get retrieves a sample by sequence number.
func (r *LedgerRepository) Get(ctx context.Context, vehicleID string, sequenceNo uint64) (*domain.LocationSample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM location_samples
		WHERE vehicle_id = $1 AND sequence_no = $2
	`

	sample, err := scanSample(r.q.QueryRowContext(ctx, query, vehicleID, int64(sequenceNo)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return sample, nil
}

// Range retrieves samples with from <= sequence_no <= to in one ordered read.
func (r *LedgerRepository) Range(ctx context.Context, vehicleID string, from, to uint64) ([]*domain.LocationSample, error) {
	// sequence_no is a BIGINT column.
	to = min(to, math.MaxInt64)
	if from > to {
		return []*domain.LocationSample{}, nil
	}

	query := `
		SELECT ` + sampleColumns + `
		FROM location_samples
		WHERE vehicle_id = $1 AND sequence_no BETWEEN $2 AND $3
		ORDER BY sequence_no ASC
	`

	rows, err := r.q.QueryContext(ctx, query, vehicleID, int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]*domain.LocationSample, 0, min(to-from, maxRangePresize-1)+1)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*domain.LocationSample, error) {
	var sample domain.LocationSample
	var sequenceNo int64

	err := row.Scan(
		&sample.VehicleID,
		&sequenceNo,
		&sample.Lat,
		&sample.Lon,
		&sample.CapturedAt,
		&sample.DistanceFromPreviousKm,
		&sample.CumulativeDistanceKm,
	)
	if err != nil {
		return nil, err
	}

	sample.SequenceNo = uint64(sequenceNo)
	return &sample, nil
}

// Ensure LedgerRepository implements repository.LedgerRepository.
var _ repository.LedgerRepository = (*LedgerRepository)(nil)
