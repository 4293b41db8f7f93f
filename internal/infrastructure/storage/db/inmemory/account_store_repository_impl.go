package inmemory

import (
	"context"
	"sync"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
)

type accountStoreRepositoryImpl struct {
	lock  sync.RWMutex
	store *domain.AccountStore
}

func NewAccountStoreRepositoryImpl() domain.AccountStoreRepository {
	return &accountStoreRepositoryImpl{store: domain.NewAccountStore()}
}

func (r *accountStoreRepositoryImpl) GetAccountStore(
	_ context.Context,
) (*domain.AccountStore, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.store.Clone(), nil
}

func (r *accountStoreRepositoryImpl) SetAccountStore(
	_ context.Context, store *domain.AccountStore,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if store == nil {
		r.store = domain.NewAccountStore()
		return nil
	}
	r.store = store.Clone()
	return nil
}
