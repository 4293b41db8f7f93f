package application

import (
	"context"

	"github.com/shivarthu/shivarthu-signer/internal/core/application/pubsub"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
)

type WebhookInfo = pubsub.WebhookInfo

type PubSubService interface {
	AddWebhook(ctx context.Context, event, endpoint, secret string) (string, error)
	RemoveWebhook(ctx context.Context, id string) error
	ListWebhooks(ctx context.Context, event string) ([]WebhookInfo, error)
	NotifyTransaction(info domain.TransactionInfo)
	Close()
}

func NewPubSubService(pubsubSvc ports.PubSub) PubSubService {
	return pubsub.NewService(pubsubSvc)
}
