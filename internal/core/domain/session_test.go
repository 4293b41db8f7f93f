package domain_test

import (
	"sync"
	"testing"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestSessionUnlockLock(t *testing.T) {
	session := domain.NewSession()
	require.False(t, session.IsUnlocked())
	require.Equal(t, domain.SessionSnapshot{}, session.Snapshot())

	changed := session.Changed()
	require.NoError(t, session.Unlock(aliceID, "mnemonic"))
	requireClosed(t, changed)

	snapshot := session.Snapshot()
	require.True(t, snapshot.Unlocked)
	require.Equal(t, aliceID, snapshot.AccountID)
	require.Equal(t, "mnemonic", snapshot.Mnemonic)

	changed = session.Changed()
	session.Lock()
	requireClosed(t, changed)
	require.False(t, session.IsUnlocked())
	require.Empty(t, session.AccountID())
	require.Equal(t, domain.SessionSnapshot{}, session.Snapshot())
}

func TestSessionUnlockReplaces(t *testing.T) {
	session := domain.NewSession()
	require.NoError(t, session.Unlock(aliceID, "first"))
	require.NoError(t, session.Unlock(bobID, "second"))

	snapshot := session.Snapshot()
	require.Equal(t, bobID, snapshot.AccountID)
	require.Equal(t, "second", snapshot.Mnemonic)
}

func TestFailingSessionUnlock(t *testing.T) {
	session := domain.NewSession()
	require.ErrorIs(t, session.Unlock("", "mnemonic"), domain.ErrNullAccountID)
	require.ErrorIs(t, session.Unlock(aliceID, ""), domain.ErrNullMnemonic)
	require.False(t, session.IsUnlocked())
}

func TestSessionConsistency(t *testing.T) {
	session := &domain.Session{}
	wg := &sync.WaitGroup{}

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				session.Lock()
				return
			}
			// nolint
			session.Unlock(aliceID, "mnemonic")
		}(i)
		go func() {
			defer wg.Done()
			snapshot := session.Snapshot()
			require.Equal(t, snapshot.Unlocked, len(snapshot.Mnemonic) > 0)
			require.Equal(t, snapshot.Unlocked, len(snapshot.AccountID) > 0)
		}()
	}
	wg.Wait()
}

func requireClosed(t *testing.T, ch <-chan struct{}) {
	select {
	case <-ch:
	default:
		t.Fatal("expected channel to be closed")
	}
}
