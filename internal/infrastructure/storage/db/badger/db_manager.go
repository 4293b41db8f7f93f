package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const (
	accountsDir = "accounts"

	gcInterval     = 30 * time.Minute
	gcDiscardRatio = 0.5
)

type repoManager struct {
	store                  *badgerhold.Store
	accountStoreRepository domain.AccountStoreRepository
	stopGC                 func()
}

// NewRepoManager opens (or creates if not exists) the badger store in the
// given base directory. An empty directory makes the store in-memory.
func NewRepoManager(
	baseDbDir string, logger badger.Logger,
) (ports.RepoManager, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, accountsDir)
	}

	store, stopGC, err := CreateDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening accounts db: %w", err)
	}

	return &repoManager{
		store:                  store,
		accountStoreRepository: NewAccountStoreRepositoryImpl(store),
		stopGC:                 stopGC,
	}, nil
}

func (r *repoManager) AccountStoreRepository() domain.AccountStoreRepository {
	return r.accountStoreRepository
}

func (r *repoManager) Close() {
	r.stopGC()
	if err := r.store.Close(); err != nil {
		log.WithError(err).Warn("failed to close accounts db")
	}
}

// CreateDb opens a badgerhold store with JSON encoding in dbDir. The store is
// kept in memory if dbDir is empty, otherwise its value log is periodically
// garbage collected until the returned stop function is called.
func CreateDb(
	dbDir string, logger badger.Logger,
) (*badgerhold.Store, func(), error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, nil, err
	}

	if isInMemory {
		return db, func() {}, nil
	}

	ticker := time.NewTicker(gcInterval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := db.Badger().RunValueLogGC(gcDiscardRatio); err != nil &&
					err != badger.ErrNoRewrite {
					log.Error(err)
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return db, func() { once.Do(func() { close(done) }) }, nil
}

// JSONEncode is a custom JSON based encoder for badger.
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer
	if err := json.NewEncoder(&buff).Encode(value); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger.
func JSONDecode(data []byte, value interface{}) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(value)
}
