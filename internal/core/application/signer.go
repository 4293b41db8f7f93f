package application

import (
	"context"
	"time"

	"github.com/shivarthu/shivarthu-signer/internal/core/application/signer"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
)

type SignerService interface {
	Submit(ctx context.Context, payload domain.Payload) (*domain.Transaction, error)
	Run(ctx context.Context, tx *domain.Transaction)
	Get(id string) (*domain.Transaction, error)
	List() []domain.TransactionInfo
	Discard(id string) error
	Forget(id string) error
	Balance(ctx context.Context, address string) (*ports.AccountBalance, error)
	Close()
}

func NewSignerService(
	session *domain.Session, deriver *wallet.Deriver, chain ports.ChainClient,
	endpoint string, timeout, retention time.Duration, notifier PubSubService,
) (SignerService, error) {
	var n signer.Notifier
	if notifier != nil {
		n = notifier
	}
	return signer.NewService(
		session, deriver, chain, endpoint, timeout, retention, n,
	)
}
