package pubsub

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	"github.com/shivarthu/shivarthu-signer/pkg/circuitbreaker"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	tokenExpiry           = 5 * time.Minute
)

type service struct {
	store      *store
	httpClient *client
	cb         *gobreaker.CircuitBreaker
}

// NewService returns a pubsub service notifying subscribers with webhooks.
// Subscriptions are persisted in datadir, or kept in memory if datadir is
// empty.
func NewService(
	datadir string, requestTimeout time.Duration,
) (ports.PubSub, error) {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	store, err := newStore(datadir)
	if err != nil {
		return nil, fmt.Errorf("opening pubsub db: %w", err)
	}

	return &service{
		store:      store,
		httpClient: newHTTPClient(requestTimeout, DefaultRetryMax),
		cb:         circuitbreaker.NewCircuitBreaker("webhooks"),
	}, nil
}

func (ws *service) Subscribe(topic, endpoint, secret string) (string, error) {
	sub, err := NewSubscription(topic, endpoint, secret)
	if err != nil {
		return "", err
	}
	if err := ws.store.add(*sub); err != nil {
		return "", err
	}
	log.Debugf("added webhook %s for topic %s", sub.ID, sub.Event)
	return sub.ID, nil
}

func (ws *service) Unsubscribe(id string) error {
	return ws.store.remove(id)
}

func (ws *service) ListSubscriptionsForTopic(topic string) []ports.Subscription {
	return ws.listSubscriptionsForTopic(topic).toPortable()
}

func (ws *service) Publish(
	ctx context.Context, topic string, message string,
) error {
	subs := ws.listSubscriptionsForTopic(topic)

	eg := &errgroup.Group{}
	for i := range subs {
		sub := subs[i]
		eg.Go(func() error { return ws.doRequest(ctx, sub, message) })
	}
	return eg.Wait()
}

func (ws *service) Close() {
	ws.store.close()
}

func (ws *service) listSubscriptionsForTopic(topic string) subscriptions {
	subs := ws.store.list(topic)
	if topic != ports.AnyTopic && topic != ports.UnspecifiedTopic {
		subs = append(subs, ws.store.list(ports.AnyTopic)...)
	}
	return subs
}

func (ws *service) doRequest(
	ctx context.Context, sub Subscription, payload string,
) error {
	_, err := ws.cb.Execute(func() (interface{}, error) {
		headers := map[string]string{
			"Content-Type": "application/json",
		}
		if sub.IsSecured() {
			tokenString, err := signToken(sub)
			if err != nil {
				return nil, err
			}
			headers["Authorization"] = fmt.Sprintf("Bearer %s", tokenString)
		}

		status, resp, err := ws.httpClient.post(
			ctx, sub.Endpoint, []byte(payload), headers,
		)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf(
				"webhook %s replied with status %d: %s", sub.ID, status, resp,
			)
		}
		return nil, nil
	})
	if err != nil {
		log.WithError(err).Debugf("failed to notify webhook %s", sub.ID)
	}
	return err
}

func signToken(sub Subscription) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   sub.Event,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(tokenExpiry).Unix(),
	})
	return token.SignedString([]byte(sub.Secret))
}
