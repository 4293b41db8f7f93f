package domain

import (
	"fmt"
	"strings"
)

// Account is a named, password protected account. The seed phrase is only
// ever kept in its encrypted form.
type Account struct {
	Name            string `json:"name"`
	AccountID       string `json:"account_address"`
	EncryptedSecret string `json:"hash"`
}

// NewAccount returns a validated account record.
func NewAccount(name, accountID, encryptedSecret string) (*Account, error) {
	if len(strings.TrimSpace(accountID)) <= 0 {
		return nil, ErrNullAccountID
	}
	if len(encryptedSecret) <= 0 {
		return nil, ErrNullEncryptedSecret
	}
	return &Account{
		Name:            strings.TrimSpace(name),
		AccountID:       accountID,
		EncryptedSecret: encryptedSecret,
	}, nil
}

// AccountStore is the ordered collection of accounts known to the wallet. No
// two records share the same account id.
type AccountStore struct {
	Accounts []Account `json:"accounts"`
}

// NewAccountStore returns an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{Accounts: make([]Account, 0)}
}

// Add appends the record to the store. The store is left untouched if
// another record has the same account id.
func (s *AccountStore) Add(account Account) error {
	if len(account.AccountID) <= 0 {
		return ErrNullAccountID
	}
	if _, ok := s.Get(account.AccountID); ok {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, account.AccountID)
	}
	s.Accounts = append(s.Accounts, account)
	return nil
}

// Remove deletes the record with the given account id, if any, and returns
// whether something was removed.
func (s *AccountStore) Remove(accountID string) bool {
	for i, account := range s.Accounts {
		if account.AccountID == accountID {
			accounts := make([]Account, 0, len(s.Accounts)-1)
			accounts = append(accounts, s.Accounts[:i]...)
			s.Accounts = append(accounts, s.Accounts[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the record with the given account id.
func (s *AccountStore) Get(accountID string) (Account, bool) {
	for _, account := range s.Accounts {
		if account.AccountID == accountID {
			return account, true
		}
	}
	return Account{}, false
}

// List returns a copy of the records in insertion order. Later changes to
// the store are not reflected in the returned slice.
func (s *AccountStore) List() []Account {
	accounts := make([]Account, len(s.Accounts))
	copy(accounts, s.Accounts)
	return accounts
}

// SetSecret replaces the encrypted secret of the record with the given
// account id and returns whether the record exists.
func (s *AccountStore) SetSecret(accountID, encryptedSecret string) bool {
	for i, account := range s.Accounts {
		if account.AccountID == accountID {
			s.Accounts[i].EncryptedSecret = encryptedSecret
			return true
		}
	}
	return false
}

func (s *AccountStore) Len() int {
	return len(s.Accounts)
}

// Clone returns a deep copy of the store.
func (s *AccountStore) Clone() *AccountStore {
	return &AccountStore{Accounts: s.List()}
}
