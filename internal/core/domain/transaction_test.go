package domain_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/stretchr/testify/require"
)

type testPayload struct{}

func (testPayload) SignableBytes() ([]byte, error) { return []byte{0x00, 0x00}, nil }
func (testPayload) Description() string            { return "remark" }

func newTestTransaction(t *testing.T) *domain.Transaction {
	tx, err := domain.NewTransaction(testPayload{})
	require.NoError(t, err)
	return tx
}

func TestNewTransaction(t *testing.T) {
	tx := newTestTransaction(t)
	require.NotEmpty(t, tx.ID)
	require.Equal(t, domain.TxStateIdle, tx.State())

	info := tx.Info()
	require.Equal(t, "remark", info.Description)
	require.Equal(t, "IDLE", info.State)
	require.Empty(t, info.StatusLog)

	_, err := domain.NewTransaction(nil)
	require.ErrorIs(t, err, domain.ErrNullPayload)
}

func TestTransactionFinalize(t *testing.T) {
	tx := newTestTransaction(t)

	require.True(t, tx.AwaitUnlock())
	require.False(t, tx.AwaitUnlock())
	require.True(t, tx.BeginSubmit(aliceID))
	require.True(t, tx.Track("0xext"))
	require.True(t, tx.AppendStatus("broadcast"))
	require.True(t, tx.AppendStatus("in block"))
	require.True(t, tx.Finalize("0xblock", "extrinsic succeeded: {}"))

	info := tx.Info()
	require.Equal(t, "FINALIZED", info.State)
	require.True(t, info.Terminal())
	require.Equal(t, "0xblock", info.BlockHash)
	require.Equal(t, "0xext", info.ExtrinsicHash)
	require.Equal(t, aliceID, info.AccountID)
	require.Equal(t, []string{"broadcast", "in block"}, info.StatusLog)
	requireClosed(t, tx.Done())

	require.False(t, tx.Fail("dropped"))
	require.False(t, tx.AppendStatus("late"))
	require.Equal(t, "FINALIZED", tx.Info().State)
	require.Len(t, tx.Info().StatusLog, 2)
}

func TestTransactionFinalizeWithoutOutcome(t *testing.T) {
	tx := newTestTransaction(t)
	require.True(t, tx.BeginSubmit(aliceID))
	require.True(t, tx.Track("0xext"))
	require.True(t, tx.Finalize("0xblock", ""))
	require.Equal(t, domain.OutcomeFailed, tx.Info().EventOutcome)
}

func TestTransactionFail(t *testing.T) {
	tx := newTestTransaction(t)
	require.True(t, tx.BeginSubmit(aliceID))
	require.True(t, tx.Fail(""))

	info := tx.Info()
	require.Equal(t, "FAILED", info.State)
	require.NotEmpty(t, info.Reason)
	require.False(t, tx.Finalize("0xblock", "late"))
	require.False(t, tx.BeginSubmit(aliceID))
}

func TestTransactionBeginSubmitOnce(t *testing.T) {
	tx := newTestTransaction(t)

	var count int32
	wg := &sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tx.BeginSubmit(aliceID) {
				atomic.AddInt32(&count, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), count)
	require.Equal(t, domain.TxStateSubmitting, tx.State())
	require.False(t, tx.AwaitUnlock())
}

func TestTransactionTrackRequiresSubmit(t *testing.T) {
	tx := newTestTransaction(t)
	require.False(t, tx.Track("0xext"))
	require.True(t, tx.BeginSubmit(aliceID))
	require.True(t, tx.Track("0xext"))
	require.True(t, tx.Track("0xext"))
}

func TestTransactionSubscribe(t *testing.T) {
	tx := newTestTransaction(t)
	updates, cancel := tx.Subscribe()
	defer cancel()

	require.True(t, tx.BeginSubmit(aliceID))
	require.True(t, tx.Track("0xext"))
	require.True(t, tx.AppendStatus("broadcast"))
	require.True(t, tx.Fail(domain.ReasonDropped))

	states := make([]string, 0)
	var last domain.TransactionInfo
	for info := range updates {
		states = append(states, info.State)
		last = info
	}
	require.Equal(t, "IDLE", states[0])
	require.Equal(t, "FAILED", last.State)
	require.Equal(t, domain.ReasonDropped, last.Reason)
	require.Equal(t, []string{"broadcast"}, last.StatusLog)

	terminal, _ := tx.Subscribe()
	info, ok := <-terminal
	require.True(t, ok)
	require.Equal(t, "FAILED", info.State)
	_, ok = <-terminal
	require.False(t, ok)
}

func TestTransactionAbort(t *testing.T) {
	tx := newTestTransaction(t)
	require.True(t, tx.AwaitUnlock())
	require.True(t, tx.Abort(domain.ReasonDiscarded))
	require.Equal(t, domain.ReasonDiscarded, tx.Info().Reason)

	tx = newTestTransaction(t)
	require.True(t, tx.BeginSubmit(aliceID))
	require.False(t, tx.Abort(domain.ReasonDiscarded))
	require.Equal(t, domain.TxStateSubmitting, tx.State())
}
