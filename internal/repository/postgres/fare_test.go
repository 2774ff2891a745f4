package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bahon/internal/repository"
)

func TestFareRepository_Current(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewFareRepository(db)
	at := time.Now().UTC()

	mock.ExpectQuery("FROM fare_config").
		WithArgs(at).
		WillReturnRows(sqlmock.NewRows([]string{"fare_per_km"}).AddRow("12.50"))

	fare, err := repo.Current(context.Background(), at)

	require.NoError(t, err)
	assert.True(t, fare.Equal(decimal.RequireFromString("12.5")))
}

func TestFareRepository_Current_NoRows(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewFareRepository(db)
	at := time.Now().UTC()

	mock.ExpectQuery("FROM fare_config").
		WithArgs(at).
		WillReturnRows(sqlmock.NewRows([]string{"fare_per_km"}))

	fare, err := repo.Current(context.Background(), at)

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.True(t, fare.IsZero())
}
