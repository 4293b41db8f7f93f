package ports

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
)

var (
	// ErrConnect is returned when the node cannot be reached.
	ErrConnect = errors.New("connection error")
	// ErrSubmit is returned when the node rejects or fails to accept an
	// extrinsic submission.
	ErrSubmit = errors.New("submit error")
	// ErrFetchEvents ...
	ErrFetchEvents = errors.New("failed to fetch events")
	// ErrQuery is returned when the node fails to answer a state query.
	ErrQuery = errors.New("query error")
)

// TxStatusKind enumerates the statuses a submitted extrinsic goes through.
type TxStatusKind int

const (
	TxStatusFuture TxStatusKind = iota
	TxStatusReady
	TxStatusBroadcast
	TxStatusInBlock
	TxStatusRetracted
	TxStatusFinalityTimeout
	TxStatusFinalized
	TxStatusUsurped
	TxStatusDropped
	TxStatusInvalid
	TxStatusError
)

var txStatusNames = map[TxStatusKind]string{
	TxStatusFuture:          "future",
	TxStatusReady:           "ready",
	TxStatusBroadcast:       "broadcast",
	TxStatusInBlock:         "in block",
	TxStatusRetracted:       "retracted",
	TxStatusFinalityTimeout: "finality timeout",
	TxStatusFinalized:       "finalized",
	TxStatusUsurped:         "usurped",
	TxStatusDropped:         "dropped",
	TxStatusInvalid:         "invalid",
	TxStatusError:           "error",
}

func (k TxStatusKind) String() string {
	return txStatusNames[k]
}

// TxStatus is a single update of the status stream of a submitted extrinsic.
type TxStatus struct {
	Kind TxStatusKind
	// BlockHash is set for InBlock, Retracted, FinalityTimeout and Finalized.
	BlockHash string
	// Block is set for Finalized only.
	Block BlockRef
	Peers []string
	// Reason is set for Error, and for Usurped with the hash of the
	// extrinsic that replaced the submitted one.
	Reason string
}

func (s TxStatus) String() string {
	switch s.Kind {
	case TxStatusBroadcast:
		if len(s.Peers) > 0 {
			return fmt.Sprintf("broadcast to %s", strings.Join(s.Peers, ", "))
		}
		return s.Kind.String()
	case TxStatusInBlock, TxStatusRetracted, TxStatusFinalityTimeout,
		TxStatusFinalized:
		return fmt.Sprintf("%s %s", s.Kind, s.BlockHash)
	case TxStatusUsurped, TxStatusError:
		if len(s.Reason) > 0 {
			return fmt.Sprintf("%s: %s", s.Kind, s.Reason)
		}
	}
	return s.Kind.String()
}

// DecodedEvent is a runtime event emitted while applying an extrinsic.
type DecodedEvent struct {
	Pallet string
	Method string
	// Data is the JSON representation of the event fields.
	Data string
}

func (e DecodedEvent) String() string {
	return fmt.Sprintf("%s.%s %s", e.Pallet, e.Method, e.Data)
}

// BlockRef references the block an extrinsic has been finalized in.
type BlockRef interface {
	Hash() string
	// FetchEvents returns the events emitted by the tracked extrinsic.
	FetchEvents(ctx context.Context) ([]DecodedEvent, error)
}

// StatusStream is the ordered sequence of statuses of a submitted extrinsic.
type StatusStream interface {
	// ExtrinsicHash returns the hash of the submitted extrinsic.
	ExtrinsicHash() string
	// Next blocks until the next status is available. It returns io.EOF once
	// the stream is closed by the node.
	Next(ctx context.Context) (TxStatus, error)
	Close()
}

// AccountBalance is the balance of an account as stored by the System
// pallet, in plancks. Accounts unknown to the chain have a zero balance.
type AccountBalance struct {
	Nonce    uint32
	Free     *big.Int
	Reserved *big.Int
	// Frozen is the part of the free balance that can't be transferred.
	Frozen *big.Int
}

// Transferable returns the free balance minus the frozen one, or zero.
func (b AccountBalance) Transferable() *big.Int {
	if b.Free == nil {
		return new(big.Int)
	}
	transferable := new(big.Int).Set(b.Free)
	if b.Frozen != nil {
		transferable.Sub(transferable, b.Frozen)
	}
	if transferable.Sign() < 0 {
		transferable.SetInt64(0)
	}
	return transferable
}

// Connection is a live connection to a chain node.
type Connection interface {
	// SignAndSubmit signs the payload with the given keypair, submits it and
	// returns the stream of its statuses.
	SignAndSubmit(
		ctx context.Context, payload domain.Payload, key wallet.Keypair,
	) (StatusStream, error)
	// Balance returns the balance of the given 32 byte account id at the
	// best block.
	Balance(ctx context.Context, accountID []byte) (AccountBalance, error)
	Close()
}

// ChainClient opens connections to chain nodes.
type ChainClient interface {
	Connect(ctx context.Context, endpoint string) (Connection, error)
}
