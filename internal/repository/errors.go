package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a write lost a race: the ledger sequence
	// number was already taken or the account version moved.
	ErrConflict = errors.New("concurrent modification")
)
