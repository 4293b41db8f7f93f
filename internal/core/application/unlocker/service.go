package unlocker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/pkg/stats"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

// Status is the public view of the session. It never exposes the secret.
type Status struct {
	AccountID string `json:"account_id,omitempty"`
	Unlocked  bool   `json:"unlocked"`
}

// SecretUpdater persists a new encrypted secret for a stored account.
type SecretUpdater interface {
	UpdateSecret(ctx context.Context, accountID, encryptedSecret string) error
}

// Service unlocks the session with one of the stored accounts.
type Service struct {
	repo       domain.AccountStoreRepository
	deriver    *wallet.Deriver
	session    *domain.Session
	secrets    SecretUpdater
	scryptLogN int
}

func NewService(
	repo domain.AccountStoreRepository, deriver *wallet.Deriver,
	session *domain.Session, secrets SecretUpdater, scryptLogN int,
) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("missing account store repository")
	}
	if deriver == nil {
		return nil, fmt.Errorf("missing key deriver")
	}
	if session == nil {
		return nil, fmt.Errorf("missing session")
	}
	if secrets == nil {
		return nil, fmt.Errorf("missing secret updater")
	}
	return &Service{repo, deriver, session, secrets, scryptLogN}, nil
}

// Unlock decrypts the secret of the given account and fills the session with
// it. The secret must derive back to the account id it is stored under. The
// session is left untouched on failure.
//
// Secrets in the browser wallet format are re-encrypted in the current
// format once unlocked.
func (s *Service) Unlock(
	ctx context.Context, accountID, password string,
) (err error) {
	defer func() { stats.UnlockAttempt(err) }()

	store, err := s.repo.GetAccountStore(ctx)
	if err != nil {
		return err
	}
	account, ok := store.Get(accountID)
	if !ok {
		return domain.ErrAccountNotFound
	}

	mnemonic, legacy, err := decrypt(account.EncryptedSecret, password)
	if err != nil {
		return err
	}

	_, derivedID, err := s.deriver.Derive(mnemonic)
	if err == nil && derivedID != account.AccountID {
		err = fmt.Errorf("derives to a different id %s", derivedID)
	}
	if err != nil {
		// The legacy format is not authenticated, a wrong password may
		// still decrypt to some text.
		if legacy {
			return domain.ErrWrongPassword
		}
		log.Warnf("secret of account %s: %s", account.AccountID, err)
		return fmt.Errorf("%w: %s", domain.ErrCorruptAccount, err)
	}

	if err := s.session.Unlock(account.AccountID, mnemonic); err != nil {
		return err
	}
	log.Infof("unlocked account %s", account.AccountID)

	if legacy {
		s.upgradeSecret(ctx, account.AccountID, mnemonic, password)
	}
	return nil
}

func (s *Service) upgradeSecret(
	ctx context.Context, accountID, mnemonic, password string,
) {
	encryptedSecret, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  mnemonic,
		Passphrase: password,
		ScryptLogN: s.scryptLogN,
	})
	if err == nil {
		err = s.secrets.UpdateSecret(ctx, accountID, encryptedSecret)
	}
	if err != nil {
		log.WithError(err).Warnf(
			"failed to re-encrypt legacy secret of account %s", accountID,
		)
		return
	}
	log.Infof("re-encrypted legacy secret of account %s", accountID)
}

// decrypt opens the secret with the current cypher, falling back to the
// legacy one. It also returns whether the legacy cypher was used.
func decrypt(cypherText, password string) (string, bool, error) {
	if len(password) <= 0 {
		return "", false, domain.ErrWrongPassword
	}
	opts := wallet.DecryptOpts{CypherText: cypherText, Passphrase: password}

	mnemonic, err := wallet.Decrypt(opts)
	if err == nil {
		return mnemonic, false, nil
	}
	if !errors.Is(err, wallet.ErrWrongPasswordOrCorrupt) {
		return "", false, fmt.Errorf("%w: %s", domain.ErrCorruptAccount, err)
	}
	if !wallet.IsLegacyCypherText(cypherText) {
		return "", false, domain.ErrWrongPassword
	}

	mnemonic, err = wallet.DecryptLegacy(opts)
	if err != nil {
		return "", false, domain.ErrWrongPassword
	}
	return mnemonic, true, nil
}

// Lock clears the session. Transactions already being tracked are not
// affected.
func (s *Service) Lock(_ context.Context) {
	if accountID := s.session.AccountID(); len(accountID) > 0 {
		log.Infof("locked account %s", accountID)
	}
	s.session.Lock()
}

func (s *Service) Status(_ context.Context) Status {
	snapshot := s.session.Snapshot()
	return Status{snapshot.AccountID, snapshot.Unlocked}
}
