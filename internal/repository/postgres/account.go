package postgres

import (
	"context"
	"database/sql"
	"errors"

	"bahon/internal/domain"
	"bahon/internal/repository"
)

// AccountRepository is a PostgreSQL implementation of repository.AccountRepository.
type AccountRepository struct {
	q Querier
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{q: db}
}

// NewAccountRepositoryWithTx creates an account repository using a transaction.
func NewAccountRepositoryWithTx(tx *sql.Tx) *AccountRepository {
	return &AccountRepository{q: tx}
}

const accountColumns = `rider_id, card_id, name, balance, bonus, total_spend_current_month,
		count_bonus, last_reset_month, on_journey, version`

// GetByID retrieves an account by rider ID.
func (r *AccountRepository) GetByID(ctx context.Context, riderID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE rider_id = $1`
	return r.getOne(ctx, query, riderID)
}

// GetByCardID retrieves the account carrying the given card.
func (r *AccountRepository) GetByCardID(ctx context.Context, cardID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE card_id = $1 LIMIT 1`
	return r.getOne(ctx, query, cardID)
}

// GetByIDForUpdate retrieves an account and holds a row lock until the
// enclosing transaction ends. Only meaningful on a tx-scoped repository.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, riderID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE rider_id = $1 FOR UPDATE`
	return r.getOne(ctx, query, riderID)
}

// Update writes the settlement fields if the stored version still matches.
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET balance = $1, bonus = $2, total_spend_current_month = $3, count_bonus = $4,
			last_reset_month = $5, on_journey = $6, version = version + 1
		WHERE rider_id = $7 AND version = $8
	`

	result, err := r.q.ExecContext(ctx, query,
		account.Balance,
		account.Bonus,
		account.TotalSpendCurrentMonth,
		account.CountBonus,
		account.LastResetMonth,
		account.OnJourney,
		account.RiderID,
		account.Version,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrConflict
	}

	account.Version++
	return nil
}

// SetOnJourney sets the journey flag.
func (r *AccountRepository) SetOnJourney(ctx context.Context, riderID string, onJourney bool) error {
	query := `UPDATE accounts SET on_journey = $1 WHERE rider_id = $2`

	result, err := r.q.ExecContext(ctx, query, onJourney, riderID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var account domain.Account
	var lastResetMonth sql.NullString

	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&account.RiderID,
		&account.CardID,
		&account.Name,
		&account.Balance,
		&account.Bonus,
		&account.TotalSpendCurrentMonth,
		&account.CountBonus,
		&lastResetMonth,
		&account.OnJourney,
		&account.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	account.LastResetMonth = lastResetMonth.String
	return &account, nil
}

// Ensure AccountRepository implements repository.AccountRepository.
var _ repository.AccountRepository = (*AccountRepository)(nil)
