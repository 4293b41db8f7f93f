package domain

import "sync"

// SessionSnapshot is a consistent copy of the session slot.
type SessionSnapshot struct {
	AccountID string
	Mnemonic  string
	Unlocked  bool
}

// Session is the single slot holding the decrypted secret of the unlocked
// account. The account id, the secret and the unlocked flag are always
// changed together.
type Session struct {
	lock      sync.RWMutex
	accountID string
	mnemonic  *string
	changed   chan struct{}
}

func NewSession() *Session {
	return &Session{changed: make(chan struct{})}
}

// Unlock fills the slot, replacing whatever account was unlocked before.
func (s *Session) Unlock(accountID, mnemonic string) error {
	if len(accountID) <= 0 {
		return ErrNullAccountID
	}
	if len(mnemonic) <= 0 {
		return ErrNullMnemonic
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.accountID = accountID
	s.mnemonic = &mnemonic
	s.notify()
	return nil
}

// Lock clears the slot.
func (s *Session) Lock() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.accountID = ""
	s.mnemonic = nil
	s.notify()
}

func (s *Session) IsUnlocked() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.isUnlocked()
}

func (s *Session) AccountID() string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.accountID
}

// Snapshot returns the whole slot in a single read.
func (s *Session) Snapshot() SessionSnapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if !s.isUnlocked() {
		return SessionSnapshot{}
	}
	return SessionSnapshot{
		AccountID: s.accountID,
		Mnemonic:  *s.mnemonic,
		Unlocked:  true,
	}
}

// Changed returns a channel that is closed at the next Unlock or Lock.
func (s *Session) Changed() <-chan struct{} {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.changed == nil {
		s.changed = make(chan struct{})
	}
	return s.changed
}

func (s *Session) isUnlocked() bool {
	return s.mnemonic != nil && len(s.accountID) > 0
}

func (s *Session) notify() {
	if s.changed != nil {
		close(s.changed)
	}
	s.changed = make(chan struct{})
}
