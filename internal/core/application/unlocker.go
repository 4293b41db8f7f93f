package application

import (
	"context"

	"github.com/shivarthu/shivarthu-signer/internal/core/application/unlocker"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
)

type SessionStatus = unlocker.Status

type UnlockerService interface {
	Unlock(ctx context.Context, accountID, password string) error
	Lock(ctx context.Context)
	Status(ctx context.Context) SessionStatus
}

func NewUnlockerService(
	repo domain.AccountStoreRepository, deriver *wallet.Deriver,
	session *domain.Session, secrets unlocker.SecretUpdater, scryptLogN int,
) (UnlockerService, error) {
	return unlocker.NewService(repo, deriver, session, secrets, scryptLogN)
}
