package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"bahon/internal/domain"
	"bahon/internal/repository"
)

// defaultJourneyLimit bounds ListByRider when the caller passes no limit.
const defaultJourneyLimit = 100

// JourneyRepository is a PostgreSQL implementation of repository.JourneyRepository.
type JourneyRepository struct {
	q Querier
}

// NewJourneyRepository creates a new PostgreSQL journey repository.
func NewJourneyRepository(db *sql.DB) *JourneyRepository {
	return &JourneyRepository{q: db}
}

// NewJourneyRepositoryWithTx creates a journey repository using a transaction.
func NewJourneyRepositoryWithTx(tx *sql.Tx) *JourneyRepository {
	return &JourneyRepository{q: tx}
}

// Create persists a new journey record. The path is stored as JSONB.
func (r *JourneyRepository) Create(ctx context.Context, journey *domain.JourneyRecord) error {
	query := `
		INSERT INTO journeys (
			id, rider_id, vehicle_id, entry_time, exit_time, entry_point_name, exit_point_name,
			entry_sequence_no, exit_sequence_no, distance_travelled_km, fare, fare_per_km,
			total_time_minutes, path, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	path := journey.Path
	if path == nil {
		path = []domain.Point{}
	}
	pathJSON, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("marshal journey path: %w", err)
	}

	_, err = r.q.ExecContext(ctx, query,
		journey.ID,
		journey.RiderID,
		journey.VehicleID,
		journey.EntryTime,
		journey.ExitTime,
		journey.EntryPointName,
		journey.ExitPointName,
		int64(journey.EntrySequenceNo),
		int64(journey.ExitSequenceNo),
		journey.DistanceTravelledKm,
		journey.Fare,
		journey.FarePerKm,
		journey.TotalTimeMinutes,
		pathJSON,
		journey.CreatedAt,
	)

	return err
}

// ListByRider retrieves a rider's journeys, newest first.
func (r *JourneyRepository) ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.JourneyRecord, error) {
	if limit <= 0 {
		limit = defaultJourneyLimit
	}

	query := `
		SELECT id, rider_id, vehicle_id, entry_time, exit_time, entry_point_name, exit_point_name,
			entry_sequence_no, exit_sequence_no, distance_travelled_km, fare, fare_per_km,
			total_time_minutes, path, created_at
		FROM journeys
		WHERE rider_id = $1
		ORDER BY exit_time DESC
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, riderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var journeys []*domain.JourneyRecord
	for rows.Next() {
		var journey domain.JourneyRecord
		var entrySeq, exitSeq int64
		var pathJSON []byte

		if err := rows.Scan(
			&journey.ID,
			&journey.RiderID,
			&journey.VehicleID,
			&journey.EntryTime,
			&journey.ExitTime,
			&journey.EntryPointName,
			&journey.ExitPointName,
			&entrySeq,
			&exitSeq,
			&journey.DistanceTravelledKm,
			&journey.Fare,
			&journey.FarePerKm,
			&journey.TotalTimeMinutes,
			&pathJSON,
			&journey.CreatedAt,
		); err != nil {
			return nil, err
		}

		journey.EntrySequenceNo = uint64(entrySeq)
		journey.ExitSequenceNo = uint64(exitSeq)
		if err := json.Unmarshal(pathJSON, &journey.Path); err != nil {
			return nil, fmt.Errorf("unmarshal journey path %s: %w", journey.ID, err)
		}

		journeys = append(journeys, &journey)
	}

	return journeys, rows.Err()
}

// Ensure JourneyRepository implements repository.JourneyRepository.
var _ repository.JourneyRepository = (*JourneyRepository)(nil)
