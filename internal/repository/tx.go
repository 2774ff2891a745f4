package repository

import "context"

// SettlementStores are the repositories bound to one settlement transaction.
type SettlementStores struct {
	Accounts AccountRepository
	Journeys JourneyRepository
}

// TxManager runs fn inside a transaction. The transaction commits if fn
// returns nil and rolls back otherwise.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, stores SettlementStores) error) error
}
