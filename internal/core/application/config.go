package application

import (
	"fmt"
	"time"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	dbbadger "github.com/shivarthu/shivarthu-signer/internal/infrastructure/storage/db/badger"
	"github.com/shivarthu/shivarthu-signer/internal/infrastructure/storage/db/inmemory"
	postgresdb "github.com/shivarthu/shivarthu-signer/internal/infrastructure/storage/db/pg"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

const (
	DBBadger   = "badger"
	DBInMemory = "inmemory"
	DBPostgres = "postgres"
)

var (
	SupportedDBType = map[string]struct{}{
		DBBadger:   {},
		DBInMemory: {},
		DBPostgres: {},
	}
)

type Config struct {
	DBType   string
	DBConfig interface{}

	PubSub       ports.PubSub
	ChainClient  ports.ChainClient
	NodeEndpoint string
	KeyScheme    wallet.Scheme
	SS58Prefix   uint16
	ScryptLogN   int
	TxTimeout    time.Duration
	// TxRetention is how long terminated transactions are kept, zero keeps
	// them until forgotten.
	TxRetention time.Duration

	repo     ports.RepoManager
	session  *domain.Session
	deriver  *wallet.Deriver
	pubsub   PubSubService
	account  AccountService
	unlocker UnlockerService
	signer   SignerService
}

func (c *Config) Validate() error {
	if _, ok := SupportedDBType[c.DBType]; !ok {
		return fmt.Errorf("%w %s", ErrUnknownDBType, c.DBType)
	}
	if c.ChainClient == nil {
		return ErrMissingChainClient
	}
	if _, err := c.keyDeriver(); err != nil {
		return err
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	if _, err := c.signerService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) RepoManager() ports.RepoManager {
	repo, _ := c.repoManager()
	return repo
}

func (c *Config) Session() *domain.Session {
	if c.session == nil {
		c.session = domain.NewSession()
	}
	return c.session
}

func (c *Config) PubSubService() PubSubService {
	svc, _ := c.pubsubService()
	return svc
}

func (c *Config) AccountService() AccountService {
	svc, _ := c.accountService()
	return svc
}

func (c *Config) UnlockerService() UnlockerService {
	svc, _ := c.unlockerService()
	return svc
}

func (c *Config) SignerService() SignerService {
	svc, _ := c.signerService()
	return svc
}

func (c *Config) repoManager() (ports.RepoManager, error) {
	if c.repo == nil {
		switch c.DBType {
		case DBBadger:
			datadir, _ := c.DBConfig.(string)
			repoManager, err := dbbadger.NewRepoManager(datadir, log.New())
			if err != nil {
				return nil, err
			}
			c.repo = repoManager
		case DBInMemory:
			c.repo = inmemory.NewRepoManager()
		case DBPostgres:
			dbConfig, _ := c.DBConfig.(postgresdb.DbConfig)
			repoManager, err := postgresdb.NewService(dbConfig)
			if err != nil {
				return nil, err
			}
			c.repo = repoManager
		default:
			return nil, ErrMissingRepoManager
		}
	}
	return c.repo, nil
}

func (c *Config) keyDeriver() (*wallet.Deriver, error) {
	if c.deriver == nil {
		deriver, err := wallet.NewDeriver(wallet.DeriverOpts{
			Scheme:     c.KeyScheme,
			SS58Prefix: c.SS58Prefix,
		})
		if err != nil {
			return nil, err
		}
		c.deriver = deriver
	}
	return c.deriver, nil
}

func (c *Config) pubsubService() (PubSubService, error) {
	if c.pubsub == nil && c.PubSub != nil {
		c.pubsub = NewPubSubService(c.PubSub)
	}
	return c.pubsub, nil
}

func (c *Config) accountService() (AccountService, error) {
	if c.account == nil {
		repo, err := c.repoManager()
		if err != nil {
			return nil, err
		}
		deriver, err := c.keyDeriver()
		if err != nil {
			return nil, err
		}
		account, err := NewAccountService(
			repo.AccountStoreRepository(), deriver, c.ScryptLogN,
		)
		if err != nil {
			return nil, err
		}
		c.account = account
	}
	return c.account, nil
}

func (c *Config) unlockerService() (UnlockerService, error) {
	if c.unlocker == nil {
		repo, err := c.repoManager()
		if err != nil {
			return nil, err
		}
		deriver, err := c.keyDeriver()
		if err != nil {
			return nil, err
		}
		account, err := c.accountService()
		if err != nil {
			return nil, err
		}
		unlocker, err := NewUnlockerService(
			repo.AccountStoreRepository(), deriver, c.Session(), account,
			c.ScryptLogN,
		)
		if err != nil {
			return nil, err
		}
		c.unlocker = unlocker
	}
	return c.unlocker, nil
}

func (c *Config) signerService() (SignerService, error) {
	if c.signer == nil {
		if c.ChainClient == nil {
			return nil, ErrMissingChainClient
		}
		deriver, err := c.keyDeriver()
		if err != nil {
			return nil, err
		}
		pubsub, _ := c.pubsubService()
		signer, err := NewSignerService(
			c.Session(), deriver, c.ChainClient, c.NodeEndpoint, c.TxTimeout,
			c.TxRetention, pubsub,
		)
		if err != nil {
			return nil, err
		}
		c.signer = signer
	}
	return c.signer, nil
}
