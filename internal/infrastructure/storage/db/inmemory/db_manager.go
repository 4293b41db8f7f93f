package inmemory

import (
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
)

type RepoManager struct {
	accountStoreRepository domain.AccountStoreRepository
}

func NewRepoManager() ports.RepoManager {
	return &RepoManager{
		accountStoreRepository: NewAccountStoreRepositoryImpl(),
	}
}

func (d *RepoManager) AccountStoreRepository() domain.AccountStoreRepository {
	return d.accountStoreRepository
}

func (d *RepoManager) Close() {}
