package dbbadger

import (
	"context"
	"errors"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const accountStoreKey = "account-store-state"

type accountStoreRepositoryImpl struct {
	store *badgerhold.Store
}

// NewAccountStoreRepositoryImpl returns a repository persisting the whole
// account store as a single record of the given badgerhold store.
func NewAccountStoreRepositoryImpl(
	store *badgerhold.Store,
) domain.AccountStoreRepository {
	return &accountStoreRepositoryImpl{store}
}

func (r *accountStoreRepositoryImpl) GetAccountStore(
	_ context.Context,
) (*domain.AccountStore, error) {
	store := domain.NewAccountStore()
	if err := r.store.Get(accountStoreKey, store); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.NewAccountStore(), nil
		}
		return nil, err
	}
	if store.Accounts == nil {
		store.Accounts = make([]domain.Account, 0)
	}
	return store, nil
}

func (r *accountStoreRepositoryImpl) SetAccountStore(
	_ context.Context, store *domain.AccountStore,
) error {
	if store == nil {
		store = domain.NewAccountStore()
	}
	return r.store.Upsert(accountStoreKey, store)
}
