package domain

import "context"

// AccountStoreRepository is the get/set slot the account store is persisted
// into. Implementations store the whole collection at once.
type AccountStoreRepository interface {
	// GetAccountStore returns the persisted store, or an empty one if nothing
	// has been persisted yet.
	GetAccountStore(ctx context.Context) (*AccountStore, error)
	// SetAccountStore overwrites the persisted store.
	SetAccountStore(ctx context.Context, store *AccountStore) error
}
