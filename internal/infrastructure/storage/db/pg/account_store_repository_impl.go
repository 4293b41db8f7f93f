package postgresdb

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
)

const (
	accountStoreSlot = "account-store-state"

	selectAccountStore = `SELECT data FROM account_store WHERE slot = $1`
	upsertAccountStore = `
		INSERT INTO account_store (slot, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (slot) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
)

type accountStoreRepositoryImpl struct {
	pool   *pgxpool.Pool
	execTx func(ctx context.Context, txBody func(pgx.Tx) error) error
}

// NewAccountStoreRepositoryImpl returns a repository persisting the whole
// account store as a single JSONB row.
func NewAccountStoreRepositoryImpl(
	pool *pgxpool.Pool,
	execTx func(ctx context.Context, txBody func(pgx.Tx) error) error,
) domain.AccountStoreRepository {
	return &accountStoreRepositoryImpl{pool, execTx}
}

func (r *accountStoreRepositoryImpl) GetAccountStore(
	ctx context.Context,
) (*domain.AccountStore, error) {
	var data []byte
	if err := r.pool.QueryRow(
		ctx, selectAccountStore, accountStoreSlot,
	).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewAccountStore(), nil
		}
		return nil, err
	}

	store := domain.NewAccountStore()
	if err := json.Unmarshal(data, store); err != nil {
		return nil, err
	}
	if store.Accounts == nil {
		store.Accounts = make([]domain.Account, 0)
	}
	return store, nil
}

func (r *accountStoreRepositoryImpl) SetAccountStore(
	ctx context.Context, store *domain.AccountStore,
) error {
	if store == nil {
		store = domain.NewAccountStore()
	}
	data, err := json.Marshal(store)
	if err != nil {
		return err
	}

	return r.execTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertAccountStore, accountStoreSlot, data)
		return err
	})
}
