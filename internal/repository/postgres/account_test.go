package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bahon/internal/domain"
	"bahon/internal/repository"
)

var accountRowColumns = []string{
	"rider_id", "card_id", "name", "balance", "bonus", "total_spend_current_month",
	"count_bonus", "last_reset_month", "on_journey", "version",
}

func TestAccountRepository_GetByCardID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery("FROM accounts WHERE card_id = \\$1").
		WithArgs("CARD-001").
		WillReturnRows(sqlmock.NewRows(accountRowColumns).
			AddRow("rider-1", "CARD-001", "Asha", "500.00", "0", "120.5", 0, "2026-10", false, int64(3)))

	account, err := repo.GetByCardID(context.Background(), "CARD-001")

	require.NoError(t, err)
	assert.Equal(t, "rider-1", account.RiderID)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(500)))
	assert.True(t, account.TotalSpendCurrentMonth.Equal(decimal.RequireFromString("120.5")))
	assert.Equal(t, "2026-10", account.LastResetMonth)
	assert.Equal(t, int64(3), account.Version)
}

func TestAccountRepository_GetByCardID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery("FROM accounts WHERE card_id").
		WithArgs("UNKNOWN").
		WillReturnRows(sqlmock.NewRows(accountRowColumns))

	_, err := repo.GetByCardID(context.Background(), "UNKNOWN")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAccountRepository_GetByID_NullResetMonth(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery("FROM accounts WHERE rider_id = \\$1").
		WithArgs("rider-1").
		WillReturnRows(sqlmock.NewRows(accountRowColumns).
			AddRow("rider-1", "CARD-001", "Asha", "0", "0", "0", 0, nil, false, int64(0)))

	account, err := repo.GetByID(context.Background(), "rider-1")

	require.NoError(t, err)
	assert.Empty(t, account.LastResetMonth)
}

func TestAccountRepository_GetByIDForUpdate_LocksRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery("FOR UPDATE").
		WithArgs("rider-1").
		WillReturnRows(sqlmock.NewRows(accountRowColumns).
			AddRow("rider-1", "CARD-001", "Asha", "10", "0", "0", 0, "2026-10", true, int64(1)))

	account, err := repo.GetByIDForUpdate(context.Background(), "rider-1")

	require.NoError(t, err)
	assert.True(t, account.OnJourney)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Update_BumpsVersion(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccountRepository(db)

	account := &domain.Account{
		RiderID:                "rider-1",
		Balance:                decimal.NewFromInt(380),
		Bonus:                  decimal.Zero,
		TotalSpendCurrentMonth: decimal.NewFromInt(120),
		LastResetMonth:         "2026-10",
		Version:                4,
	}

	mock.ExpectExec("UPDATE accounts").
		WithArgs("380", "0", "120", 0, "2026-10", false, "rider-1", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), account))
	assert.Equal(t, int64(5), account.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Update_StaleVersionIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccountRepository(db)

	account := &domain.Account{RiderID: "rider-1", Version: 4}

	mock.ExpectExec("UPDATE accounts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), account)

	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, int64(4), account.Version)
}

func TestAccountRepository_SetOnJourney(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec("UPDATE accounts SET on_journey").
		WithArgs(true, "rider-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts SET on_journey").
		WithArgs(true, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetOnJourney(context.Background(), "rider-1", true))
	assert.ErrorIs(t, repo.SetOnJourney(context.Background(), "ghost", true), repository.ErrNotFound)
}
