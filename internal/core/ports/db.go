package ports

import (
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
)

// RepoManager holds the repositories the services persist their state with.
type RepoManager interface {
	AccountStoreRepository() domain.AccountStoreRepository
	Close()
}
