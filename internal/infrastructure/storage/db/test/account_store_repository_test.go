package db_test

import (
	"context"
	"os"
	"testing"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	dbbadger "github.com/shivarthu/shivarthu-signer/internal/infrastructure/storage/db/badger"
	"github.com/shivarthu/shivarthu-signer/internal/infrastructure/storage/db/inmemory"
	postgresdb "github.com/shivarthu/shivarthu-signer/internal/infrastructure/storage/db/pg"
	"github.com/stretchr/testify/require"
)

var testAccounts = []domain.Account{
	{
		Name:            "alice",
		AccountID:       "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		EncryptedSecret: "c2VjcmV0MQ==",
	},
	{
		Name:            "bob",
		AccountID:       "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty",
		EncryptedSecret: "c2VjcmV0Mg==",
	},
}

type repoFactory func(t *testing.T) ports.RepoManager

func TestAccountStoreRepository(t *testing.T) {
	factories := map[string]repoFactory{
		"inmemory": func(t *testing.T) ports.RepoManager {
			return inmemory.NewRepoManager()
		},
		"badger": func(t *testing.T) ports.RepoManager {
			repoManager, err := dbbadger.NewRepoManager("", nil)
			require.NoError(t, err)
			return repoManager
		},
		"postgres": newPgRepoManager,
	}

	for name, newRepo := range factories {
		t.Run(name, func(t *testing.T) {
			t.Run("GetEmptyStore", testGetEmptyStore(newRepo))
			t.Run("SetAndGetStore", testSetAndGetStore(newRepo))
			t.Run("StoreIsolation", testStoreIsolation(newRepo))
		})
	}
}

func TestBadgerPersistence(t *testing.T) {
	ctx := context.Background()
	datadir := t.TempDir()

	repoManager, err := dbbadger.NewRepoManager(datadir, nil)
	require.NoError(t, err)

	store := domain.NewAccountStore()
	for _, account := range testAccounts {
		require.NoError(t, store.Add(account))
	}
	err = repoManager.AccountStoreRepository().SetAccountStore(ctx, store)
	require.NoError(t, err)
	repoManager.Close()

	repoManager, err = dbbadger.NewRepoManager(datadir, nil)
	require.NoError(t, err)
	defer repoManager.Close()

	persisted, err := repoManager.AccountStoreRepository().GetAccountStore(ctx)
	require.NoError(t, err)
	require.Equal(t, testAccounts, persisted.List())
}

// newPgRepoManager connects to the db at SIGNER_TEST_PG_DATA_SOURCE_URL and
// resets the account store.
func newPgRepoManager(t *testing.T) ports.RepoManager {
	dataSource := os.Getenv("SIGNER_TEST_PG_DATA_SOURCE_URL")
	if len(dataSource) <= 0 {
		t.Skip("SIGNER_TEST_PG_DATA_SOURCE_URL not set")
	}

	repoManager, err := postgresdb.NewService(postgresdb.DbConfig{
		DataSourceURL: dataSource,
	})
	require.NoError(t, err)

	err = repoManager.AccountStoreRepository().SetAccountStore(
		context.Background(), domain.NewAccountStore(),
	)
	require.NoError(t, err)
	return repoManager
}

func testGetEmptyStore(newRepo repoFactory) func(*testing.T) {
	return func(t *testing.T) {
		repoManager := newRepo(t)
		defer repoManager.Close()

		store, err := repoManager.AccountStoreRepository().GetAccountStore(
			context.Background(),
		)
		require.NoError(t, err)
		require.NotNil(t, store)
		require.Zero(t, store.Len())
	}
}

func testSetAndGetStore(newRepo repoFactory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		repoManager := newRepo(t)
		defer repoManager.Close()
		repo := repoManager.AccountStoreRepository()

		store := domain.NewAccountStore()
		for _, account := range testAccounts {
			require.NoError(t, store.Add(account))
		}
		require.NoError(t, repo.SetAccountStore(ctx, store))

		got, err := repo.GetAccountStore(ctx)
		require.NoError(t, err)
		require.Equal(t, testAccounts, got.List())

		store.Remove(testAccounts[0].AccountID)
		require.NoError(t, repo.SetAccountStore(ctx, store))

		got, err = repo.GetAccountStore(ctx)
		require.NoError(t, err)
		require.Equal(t, testAccounts[1:], got.List())
	}
}

func testStoreIsolation(newRepo repoFactory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		repoManager := newRepo(t)
		defer repoManager.Close()
		repo := repoManager.AccountStoreRepository()

		store := domain.NewAccountStore()
		require.NoError(t, store.Add(testAccounts[0]))
		require.NoError(t, repo.SetAccountStore(ctx, store))

		// Changes not persisted with SetAccountStore are not visible.
		require.NoError(t, store.Add(testAccounts[1]))
		got, err := repo.GetAccountStore(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, got.Len())

		require.NoError(t, got.Add(testAccounts[1]))
		got, err = repo.GetAccountStore(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, got.Len())
	}
}
