package pubsub

import (
	"errors"
	"path/filepath"
	"sort"

	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	dbbadger "github.com/shivarthu/shivarthu-signer/internal/infrastructure/storage/db/badger"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const pubsubDir = "pubsub"

type store struct {
	db     *badgerhold.Store
	stopGC func()
}

func newStore(baseDbDir string) (*store, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, pubsubDir)
	}
	db, stopGC, err := dbbadger.CreateDb(dbDir, nil)
	if err != nil {
		return nil, err
	}
	return &store{db, stopGC}, nil
}

func (s *store) add(sub Subscription) error {
	return s.db.Insert(sub.ID, sub)
}

func (s *store) remove(id string) error {
	if err := s.db.Delete(id, Subscription{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ports.ErrSubscriptionNotFound
		}
		return err
	}
	return nil
}

func (s *store) list(topic string) subscriptions {
	var query *badgerhold.Query
	if topic != ports.UnspecifiedTopic {
		query = badgerhold.Where("Event").Eq(topic)
	}

	var subs []Subscription
	if err := s.db.Find(&subs, query); err != nil {
		log.WithError(err).Warnf("failed to list webhooks for topic %q", topic)
		return nil
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].ID < subs[j].ID
	})
	return subs
}

func (s *store) close() {
	s.stopGC()
	if err := s.db.Close(); err != nil {
		log.WithError(err).Warn("failed to close pubsub db")
	}
}
