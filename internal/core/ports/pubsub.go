package ports

import (
	"context"
	"errors"
)

var (
	// ErrSubscriptionNotFound ...
	ErrSubscriptionNotFound = errors.New("webhook not found")
	// ErrInvalidEndpoint is returned when subscribing a non http(s) endpoint.
	ErrInvalidEndpoint = errors.New("invalid webhook endpoint, must be a valid http URI")
)

const AnyTopic = "*"
const UnspecifiedTopic = ""

// Topics of the notifications published when a transaction reaches a
// terminal state.
const (
	TopicTxFinalized = "TX_FINALIZED"
	TopicTxFailed    = "TX_FAILED"
)

type Subscription interface {
	Topic() string
	Id() string
	IsSecured() bool
	NotifyAt() string
}

// PubSub defines the methods of a pubsub service whose subscriptions are
// persisted by the implementation.
type PubSub interface {
	// Subscribe adds a new subscription for the requested topic.
	Subscribe(topic, endpoint, secret string) (string, error)
	// Unsubscribe removes the subscription with the given id.
	Unsubscribe(id string) error
	// ListSubscriptionsForTopic returns the info of all clients subscribed for
	// a certain topic. UnspecifiedTopic returns all of them.
	ListSubscriptionsForTopic(topic string) []Subscription
	// Publish publishes a message for a certain topic. All clients subscribed
	// for such topic, or for AnyTopic, will receive the message. Delivery,
	// retries included, is abandoned once ctx is done.
	Publish(ctx context.Context, topic string, message string) error
	// Close should be used to gracefully close the connection with the store.
	Close()
}
