package postgres

import (
	"context"
	"database/sql"

	"bahon/internal/repository"
)

// TxManager runs settlement work inside a PostgreSQL transaction.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx begins a transaction, hands tx-scoped repositories to fn and
// commits when fn succeeds. Any error rolls the transaction back.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, stores repository.SettlementStores) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stores := repository.SettlementStores{
		Accounts: NewAccountRepositoryWithTx(tx),
		Journeys: NewJourneyRepositoryWithTx(tx),
	}

	if err = fn(ctx, stores); err != nil {
		return err
	}

	return tx.Commit()
}

// Ensure TxManager implements repository.TxManager.
var _ repository.TxManager = (*TxManager)(nil)
