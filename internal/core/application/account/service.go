package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

// Service manages the collection of password protected accounts. Every
// change is a get-mutate-set sequence on the repository, serialized by the
// service.
type Service struct {
	lock       sync.Mutex
	repo       domain.AccountStoreRepository
	deriver    *wallet.Deriver
	scryptLogN int
}

func NewService(
	repo domain.AccountStoreRepository, deriver *wallet.Deriver, scryptLogN int,
) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("missing account store repository")
	}
	if deriver == nil {
		return nil, fmt.Errorf("missing key deriver")
	}
	return &Service{repo: repo, deriver: deriver, scryptLogN: scryptLogN}, nil
}

// GenSeed returns a new random mnemonic. The mnemonic is not stored.
func (s *Service) GenSeed(_ context.Context, numOfWords int) (string, error) {
	return wallet.NewMnemonic(wallet.NewMnemonicOpts{WordCount: numOfWords})
}

// AddAccount derives the account id of the mnemonic, encrypts the mnemonic
// with the password and stores the new record.
func (s *Service) AddAccount(
	ctx context.Context, name, mnemonic, password, confirmPassword string,
) (*domain.Account, error) {
	if len(password) <= 0 {
		return nil, domain.ErrNullPassword
	}
	if password != confirmPassword {
		return nil, domain.ErrPasswordMismatch
	}

	mnemonic = wallet.NormalizeMnemonic(mnemonic)
	_, accountID, err := s.deriver.Derive(mnemonic)
	if err != nil {
		return nil, err
	}

	// checked again under lock by updateStore.
	if store, err := s.repo.GetAccountStore(ctx); err == nil {
		if _, ok := store.Get(accountID); ok {
			return nil, fmt.Errorf(
				"%w: %s", domain.ErrAccountAlreadyExists, accountID,
			)
		}
	}

	encryptedSecret, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  mnemonic,
		Passphrase: password,
		ScryptLogN: s.scryptLogN,
	})
	if err != nil {
		return nil, err
	}

	account, err := domain.NewAccount(name, accountID, encryptedSecret)
	if err != nil {
		return nil, err
	}

	if err := s.updateStore(ctx, func(store *domain.AccountStore) error {
		return store.Add(*account)
	}); err != nil {
		return nil, err
	}

	log.Debugf("added account %s", accountID)
	return account, nil
}

// RemoveAccount deletes the record with the given account id. Removing an
// unknown account is a no-op.
func (s *Service) RemoveAccount(ctx context.Context, accountID string) error {
	removed := false
	if err := s.updateStore(ctx, func(store *domain.AccountStore) error {
		removed = store.Remove(accountID)
		return nil
	}); err != nil {
		return err
	}

	if removed {
		log.Debugf("removed account %s", accountID)
	}
	return nil
}

// ListAccounts returns a snapshot of the stored records.
func (s *Service) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	store, err := s.repo.GetAccountStore(ctx)
	if err != nil {
		return nil, err
	}
	return store.List(), nil
}

func (s *Service) GetAccount(
	ctx context.Context, accountID string,
) (*domain.Account, error) {
	store, err := s.repo.GetAccountStore(ctx)
	if err != nil {
		return nil, err
	}
	account, ok := store.Get(accountID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &account, nil
}

// ImportAccounts merges the records of an exported store, skipping those
// whose account id is already known. Records written by the browser wallet
// are accepted and upgraded on their first unlock. Nothing is imported if any
// record has an invalid address or a secret in an unknown format. It returns
// the number of imported records.
func (s *Service) ImportAccounts(ctx context.Context, data []byte) (int, error) {
	imported := domain.NewAccountStore()
	if err := json.Unmarshal(data, imported); err != nil {
		return 0, fmt.Errorf("invalid account store: %w", err)
	}

	count := 0
	if err := s.updateStore(ctx, func(store *domain.AccountStore) error {
		for _, account := range imported.Accounts {
			if _, err := domain.NewAccount(
				account.Name, account.AccountID, account.EncryptedSecret,
			); err != nil {
				return err
			}
			if _, _, err := wallet.DecodeSS58(account.AccountID); err != nil {
				return fmt.Errorf("account %q: %w", account.AccountID, err)
			}
			if err := wallet.CheckCypherText(account.EncryptedSecret); err != nil {
				return fmt.Errorf(
					"%w: account %s: %s",
					domain.ErrUnreadableSecret, account.AccountID, err,
				)
			}
			if err := store.Add(account); err != nil {
				if errors.Is(err, domain.ErrAccountAlreadyExists) {
					log.Debugf("skipping already existing account %s", account.AccountID)
					continue
				}
				return err
			}
			count++
		}
		return nil
	}); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateSecret replaces the encrypted secret of a stored account.
func (s *Service) UpdateSecret(
	ctx context.Context, accountID, encryptedSecret string,
) error {
	if len(encryptedSecret) <= 0 {
		return domain.ErrNullEncryptedSecret
	}
	return s.updateStore(ctx, func(store *domain.AccountStore) error {
		if !store.SetSecret(accountID, encryptedSecret) {
			return domain.ErrAccountNotFound
		}
		return nil
	})
}

// ExportAccounts returns the store in the same format accepted by
// ImportAccounts.
func (s *Service) ExportAccounts(ctx context.Context) ([]byte, error) {
	store, err := s.repo.GetAccountStore(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(store)
}

// updateStore applies updateFn to a copy of the persisted store and persists
// the result. Nothing is persisted if updateFn fails.
func (s *Service) updateStore(
	ctx context.Context, updateFn func(store *domain.AccountStore) error,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	store, err := s.repo.GetAccountStore(ctx)
	if err != nil {
		return err
	}
	store = store.Clone()
	if err := updateFn(store); err != nil {
		return err
	}
	return s.repo.SetAccountStore(ctx, store)
}
