package application

import (
	"context"

	"github.com/shivarthu/shivarthu-signer/internal/core/application/account"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
)

type AccountService interface {
	GenSeed(ctx context.Context, numOfWords int) (string, error)
	AddAccount(
		ctx context.Context, name, mnemonic, password, confirmPassword string,
	) (*domain.Account, error)
	RemoveAccount(ctx context.Context, accountID string) error
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ImportAccounts(ctx context.Context, data []byte) (int, error)
	UpdateSecret(ctx context.Context, accountID, encryptedSecret string) error
	ExportAccounts(ctx context.Context) ([]byte, error)
}

func NewAccountService(
	repo domain.AccountStoreRepository, deriver *wallet.Deriver, scryptLogN int,
) (AccountService, error) {
	return account.NewService(repo, deriver, scryptLogN)
}
