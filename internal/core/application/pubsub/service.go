package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// ErrInvalidEventType ...
var ErrInvalidEventType = errors.New("invalid webhook event type")

// notifyTimeout bounds the delivery of a notification to all the webhooks.
const notifyTimeout = 30 * time.Second

var topics = map[string]struct{}{
	ports.TopicTxFinalized: {},
	ports.TopicTxFailed:    {},
	ports.AnyTopic:         {},
}

// WebhookInfo is the public view of a subscription. The secret is never
// returned.
type WebhookInfo struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"is_secured"`
}

type Service struct {
	pubsub ports.PubSub
}

func NewService(pubsub ports.PubSub) *Service {
	return &Service{pubsub}
}

func (s *Service) AddWebhook(
	_ context.Context, event, endpoint, secret string,
) (string, error) {
	if _, ok := topics[event]; !ok {
		return "", fmt.Errorf("%w %s", ErrInvalidEventType, event)
	}
	return s.pubsub.Subscribe(event, endpoint, secret)
}

func (s *Service) RemoveWebhook(_ context.Context, id string) error {
	return s.pubsub.Unsubscribe(id)
}

func (s *Service) ListWebhooks(
	_ context.Context, event string,
) ([]WebhookInfo, error) {
	if _, ok := topics[event]; !ok && event != ports.UnspecifiedTopic {
		return nil, fmt.Errorf("%w %s", ErrInvalidEventType, event)
	}
	subs := s.pubsub.ListSubscriptionsForTopic(event)
	webhooks := make([]WebhookInfo, 0, len(subs))
	for _, sub := range subs {
		webhooks = append(webhooks, WebhookInfo{
			ID:        sub.Id(),
			Event:     sub.Topic(),
			Endpoint:  sub.NotifyAt(),
			IsSecured: sub.IsSecured(),
		})
	}
	return webhooks, nil
}

// NotifyTransaction publishes the terminal state of a transaction to the
// subscribers of the matching topic.
func (s *Service) NotifyTransaction(info domain.TransactionInfo) {
	event := ports.TopicTxFinalized
	if info.State == domain.TxStateFailed.String() {
		event = ports.TopicTxFailed
	}

	payload := map[string]interface{}{
		"event":          event,
		"id":             info.ID,
		"description":    info.Description,
		"account_id":     info.AccountID,
		"extrinsic_hash": info.ExtrinsicHash,
		"status_log":     info.StatusLog,
		"timestamp":      info.UpdatedAt,
		"date":           time.Unix(info.UpdatedAt, 0).Format(time.RFC3339),
	}
	if event == ports.TopicTxFinalized {
		payload["block_hash"] = info.BlockHash
		payload["event_outcome"] = info.EventOutcome
	} else {
		payload["reason"] = info.Reason
	}
	message, _ := json.Marshal(payload)

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := s.pubsub.Publish(ctx, event, string(message)); err != nil {
		log.WithError(err).Warnf(
			"failed to notify %s of transaction %s", event, info.ID,
		)
	}
}

func (s *Service) Close() {
	s.pubsub.Close()
}
