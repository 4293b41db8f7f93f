package unlocker_test

import (
	"context"
	"testing"

	"github.com/shivarthu/shivarthu-signer/internal/core/application/account"
	"github.com/shivarthu/shivarthu-signer/internal/core/application/unlocker"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/infrastructure/storage/db/inmemory"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic  = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"
	otherMnemonic = "legal winner thank year wave sausage worth useful legal winner thank yellow"
	password      = "password"

	// testMnemonic encrypted with password by the browser wallet.
	legacySecret = "rRj2Hpc/mfQwaJPaWhDm2KhuxN6fvXbqIobcF6e3oVDp5KTmKPoBYg8O8yIGDDMoHwMLHcwcLoUsZoZochp0B2GwNYsuMCKDXTsZaYv7rT8="
)

func TestUnlock(t *testing.T) {
	ctx := context.Background()
	svc, session, accountID := newTestService(t, testMnemonic)

	require.False(t, svc.Status(ctx).Unlocked)

	err := svc.Unlock(ctx, accountID, password)
	require.NoError(t, err)

	status := svc.Status(ctx)
	require.True(t, status.Unlocked)
	require.Equal(t, accountID, status.AccountID)

	snapshot := session.Snapshot()
	require.Equal(t, testMnemonic, snapshot.Mnemonic)

	svc.Lock(ctx)
	require.False(t, svc.Status(ctx).Unlocked)
	require.Empty(t, svc.Status(ctx).AccountID)
	require.Empty(t, session.Snapshot().Mnemonic)

	// Locking twice is a no-op.
	svc.Lock(ctx)
	require.False(t, session.IsUnlocked())
}

func TestFailingUnlock(t *testing.T) {
	ctx := context.Background()

	t.Run("account not found", func(t *testing.T) {
		svc, session, _ := newTestService(t, testMnemonic)

		err := svc.Unlock(ctx, "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty", password)
		require.ErrorIs(t, err, domain.ErrAccountNotFound)
		require.False(t, session.IsUnlocked())
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, session, accountID := newTestService(t, testMnemonic)

		err := svc.Unlock(ctx, accountID, "wrong")
		require.ErrorIs(t, err, domain.ErrWrongPassword)
		require.False(t, session.IsUnlocked())
	})

	t.Run("null password", func(t *testing.T) {
		svc, session, accountID := newTestService(t, testMnemonic)

		err := svc.Unlock(ctx, accountID, "")
		require.ErrorIs(t, err, domain.ErrWrongPassword)
		require.False(t, session.IsUnlocked())
	})

	t.Run("mismatching secret", func(t *testing.T) {
		svc, session, accountID := newTestService(t, testMnemonic)
		replaceSecret(t, svc, accountID, otherMnemonic)

		err := svc.Unlock(ctx, accountID, password)
		require.ErrorIs(t, err, domain.ErrCorruptAccount)
		require.False(t, session.IsUnlocked())
	})

	t.Run("invalid secret", func(t *testing.T) {
		svc, session, accountID := newTestService(t, testMnemonic)
		replaceSecret(t, svc, accountID, "not a mnemonic")

		err := svc.Unlock(ctx, accountID, password)
		require.ErrorIs(t, err, domain.ErrCorruptAccount)
		require.False(t, session.IsUnlocked())
	})

	t.Run("failure keeps previous session", func(t *testing.T) {
		svc, session, accountID := newTestService(t, testMnemonic)
		require.NoError(t, svc.Unlock(ctx, accountID, password))

		err := svc.Unlock(ctx, accountID, "wrong")
		require.ErrorIs(t, err, domain.ErrWrongPassword)
		require.True(t, session.IsUnlocked())
		require.Equal(t, accountID, session.AccountID())
	})
}

func TestUnlockLegacySecret(t *testing.T) {
	ctx := context.Background()

	t.Run("re-encrypts on unlock", func(t *testing.T) {
		svc, session, accountID := newTestService(t, testMnemonic)
		setSecret(t, svc, accountID, legacySecret)

		err := svc.Unlock(ctx, accountID, password)
		require.NoError(t, err)
		require.True(t, session.IsUnlocked())
		require.Equal(t, testMnemonic, session.Snapshot().Mnemonic)

		secret := storedSecret(t, svc, accountID)
		require.NotEqual(t, legacySecret, secret)
		require.False(t, wallet.IsLegacyCypherText(secret))
		mnemonic, err := wallet.Decrypt(wallet.DecryptOpts{
			CypherText: secret,
			Passphrase: password,
		})
		require.NoError(t, err)
		require.Equal(t, testMnemonic, mnemonic)

		svc.Lock(ctx)
		require.NoError(t, svc.Unlock(ctx, accountID, password))
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, session, accountID := newTestService(t, testMnemonic)
		setSecret(t, svc, accountID, legacySecret)

		err := svc.Unlock(ctx, accountID, "wrong")
		require.ErrorIs(t, err, domain.ErrWrongPassword)
		require.False(t, session.IsUnlocked())
		require.Equal(t, legacySecret, storedSecret(t, svc, accountID))
	})

	t.Run("secret of another account", func(t *testing.T) {
		svc, session, accountID := newTestService(t, otherMnemonic)
		setSecret(t, svc, accountID, legacySecret)

		err := svc.Unlock(ctx, accountID, password)
		require.ErrorIs(t, err, domain.ErrWrongPassword)
		require.False(t, session.IsUnlocked())
		require.Equal(t, legacySecret, storedSecret(t, svc, accountID))
	})
}

type testService struct {
	*unlocker.Service
	repo domain.AccountStoreRepository
}

func newTestService(
	t *testing.T, mnemonic string,
) (*testService, *domain.Session, string) {
	deriver, err := wallet.NewDeriver(wallet.DeriverOpts{
		Scheme:     wallet.SchemeSr25519,
		SS58Prefix: wallet.DefaultSS58Prefix,
	})
	require.NoError(t, err)

	_, accountID, err := deriver.Derive(mnemonic)
	require.NoError(t, err)

	repo := inmemory.NewRepoManager().AccountStoreRepository()
	store := domain.NewAccountStore()
	require.NoError(t, store.Add(domain.Account{
		Name:            "main",
		AccountID:       accountID,
		EncryptedSecret: encrypt(t, mnemonic),
	}))
	require.NoError(t, repo.SetAccountStore(context.Background(), store))

	accounts, err := account.NewService(repo, deriver, wallet.MinScryptLogN)
	require.NoError(t, err)

	session := domain.NewSession()
	svc, err := unlocker.NewService(
		repo, deriver, session, accounts, wallet.MinScryptLogN,
	)
	require.NoError(t, err)
	return &testService{svc, repo}, session, accountID
}

func replaceSecret(t *testing.T, svc *testService, accountID, secret string) {
	setSecret(t, svc, accountID, encrypt(t, secret))
}

func setSecret(t *testing.T, svc *testService, accountID, encryptedSecret string) {
	ctx := context.Background()
	store, err := svc.repo.GetAccountStore(ctx)
	require.NoError(t, err)

	require.True(t, store.SetSecret(accountID, encryptedSecret))
	require.NoError(t, svc.repo.SetAccountStore(ctx, store))
}

func storedSecret(t *testing.T, svc *testService, accountID string) string {
	store, err := svc.repo.GetAccountStore(context.Background())
	require.NoError(t, err)

	acc, ok := store.Get(accountID)
	require.True(t, ok)
	return acc.EncryptedSecret
}

func encrypt(t *testing.T, plainText string) string {
	cypher, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  plainText,
		Passphrase: password,
		ScryptLogN: wallet.MinScryptLogN,
	})
	require.NoError(t, err)
	return cypher
}
