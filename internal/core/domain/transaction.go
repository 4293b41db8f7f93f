package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// OutcomeFailed is the event outcome of a finalized extrinsic for which no
	// success event could be found.
	OutcomeFailed = "transaction failed"

	// Failure reasons.
	ReasonDropped         = "dropped"
	ReasonInvalid         = "invalid"
	ReasonUsurped         = "usurped"
	ReasonFinalityTimeout = "finality timeout"
	ReasonStreamClosed    = "status stream closed"
	ReasonDiscarded       = "discarded"
	ReasonTimeout         = "timeout"
	reasonUnknown         = "unknown error"
)

// Payload is the opaque call a transaction signs and submits.
type Payload interface {
	// SignableBytes returns the SCALE encoded call.
	SignableBytes() ([]byte, error)
	Description() string
}

// TxState represents the different states a transaction can assume.
type TxState int

const (
	TxStateIdle TxState = iota
	TxStateAwaitingUnlock
	TxStateSubmitting
	TxStateTracking
	TxStateFinalized
	TxStateFailed
)

var txStateNames = map[TxState]string{
	TxStateIdle:           "IDLE",
	TxStateAwaitingUnlock: "AWAITING_UNLOCK",
	TxStateSubmitting:     "SUBMITTING",
	TxStateTracking:       "TRACKING",
	TxStateFinalized:      "FINALIZED",
	TxStateFailed:         "FAILED",
}

func (s TxState) String() string {
	return txStateNames[s]
}

// IsTerminal returns whether no more transitions can happen.
func (s TxState) IsTerminal() bool {
	return s == TxStateFinalized || s == TxStateFailed
}

// TransactionInfo is a point in time copy of a transaction.
type TransactionInfo struct {
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	State         string   `json:"state"`
	AccountID     string   `json:"account_id,omitempty"`
	ExtrinsicHash string   `json:"extrinsic_hash,omitempty"`
	BlockHash     string   `json:"block_hash,omitempty"`
	EventOutcome  string   `json:"event_outcome,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	StatusLog     []string `json:"status_log"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
}

// Terminal returns whether the copied state is terminal.
func (i TransactionInfo) Terminal() bool {
	return i.State == TxStateFinalized.String() || i.State == TxStateFailed.String()
}

// Transaction is the lifecycle of a single signing request, from creation to
// a terminal Finalized or Failed state. It is safe for concurrent use.
type Transaction struct {
	ID      string
	Payload Payload

	lock          sync.RWMutex
	description   string
	state         TxState
	submitted     bool
	accountID     string
	extrinsicHash string
	blockHash     string
	eventOutcome  string
	reason        string
	statusLog     []string
	createdAt     int64
	updatedAt     int64
	subscribers   []chan TransactionInfo
	done          chan struct{}
}

// NewTransaction returns an Idle transaction with a new id.
func NewTransaction(payload Payload) (*Transaction, error) {
	if payload == nil {
		return nil, ErrNullPayload
	}
	now := time.Now().Unix()
	return &Transaction{
		ID:          uuid.New().String(),
		Payload:     payload,
		description: payload.Description(),
		state:       TxStateIdle,
		statusLog:   make([]string, 0),
		createdAt:   now,
		updatedAt:   now,
		done:        make(chan struct{}),
	}, nil
}

func (t *Transaction) State() TxState {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.state
}

// Info returns a copy of the transaction.
func (t *Transaction) Info() TransactionInfo {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.info()
}

// Done returns a channel closed once the transaction reaches a terminal state.
func (t *Transaction) Done() <-chan struct{} {
	return t.done
}

// AwaitUnlock brings an Idle transaction to AwaitingUnlock.
func (t *Transaction) AwaitUnlock() bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.state != TxStateIdle {
		return false
	}
	t.setState(TxStateAwaitingUnlock)
	return true
}

// BeginSubmit atomically checks and sets the submission guard. Only the first
// call on a non terminal transaction returns true and moves it to Submitting.
func (t *Transaction) BeginSubmit(accountID string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.submitted || t.state.IsTerminal() {
		return false
	}
	t.submitted = true
	t.accountID = accountID
	t.setState(TxStateSubmitting)
	return true
}

// Track brings a Submitting transaction to Tracking.
func (t *Transaction) Track(extrinsicHash string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.state >= TxStateTracking {
		return t.state == TxStateTracking
	}
	if t.state != TxStateSubmitting {
		return false
	}
	t.extrinsicHash = extrinsicHash
	t.setState(TxStateTracking)
	return true
}

// AppendStatus adds a line to the status log. The log of a terminal
// transaction is frozen.
func (t *Transaction) AppendStatus(status string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.state.IsTerminal() {
		return false
	}
	t.statusLog = append(t.statusLog, status)
	t.touch()
	return true
}

// Finalize brings the transaction to the terminal Finalized state. An empty
// outcome is recorded as OutcomeFailed.
func (t *Transaction) Finalize(blockHash, outcome string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.state.IsTerminal() {
		return false
	}
	if len(outcome) <= 0 {
		outcome = OutcomeFailed
	}
	t.blockHash = blockHash
	t.eventOutcome = outcome
	t.setState(TxStateFinalized)
	return true
}

// Fail brings the transaction to the terminal Failed state. A failure always
// carries a reason.
func (t *Transaction) Fail(reason string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.state.IsTerminal() {
		return false
	}
	if len(reason) <= 0 {
		reason = reasonUnknown
	}
	t.reason = reason
	t.setState(TxStateFailed)
	return true
}

// Abort fails the transaction only if it has not been submitted yet.
func (t *Transaction) Abort(reason string) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.submitted || t.state.IsTerminal() {
		return false
	}
	if len(reason) <= 0 {
		reason = reasonUnknown
	}
	t.reason = reason
	t.setState(TxStateFailed)
	return true
}

// Subscribe returns a channel receiving a copy of the transaction at every
// change. Every copy carries the whole status log, so a slow reader that
// misses an update still sees the full history in the next one. The channel
// is closed after the terminal copy has been sent, or by calling the
// returned cancel func.
func (t *Transaction) Subscribe() (<-chan TransactionInfo, func()) {
	t.lock.Lock()
	defer t.lock.Unlock()

	ch := make(chan TransactionInfo, 16)
	ch <- t.info()
	if t.state.IsTerminal() {
		close(ch)
		return ch, func() {}
	}
	t.subscribers = append(t.subscribers, ch)

	cancel := func() {
		t.lock.Lock()
		defer t.lock.Unlock()
		for i, sub := range t.subscribers {
			if sub == ch {
				t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (t *Transaction) setState(state TxState) {
	t.state = state
	t.touch()
	if state.IsTerminal() {
		for _, sub := range t.subscribers {
			close(sub)
		}
		t.subscribers = nil
		close(t.done)
	}
}

func (t *Transaction) touch() {
	t.updatedAt = time.Now().Unix()
	info := t.info()
	for _, sub := range t.subscribers {
		select {
		case sub <- info:
		default:
			// drop the stale copy and push the latest one.
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- info:
			default:
			}
		}
	}
}

func (t *Transaction) info() TransactionInfo {
	statusLog := make([]string, len(t.statusLog))
	copy(statusLog, t.statusLog)
	return TransactionInfo{
		ID:            t.ID,
		Description:   t.description,
		State:         t.state.String(),
		AccountID:     t.accountID,
		ExtrinsicHash: t.extrinsicHash,
		BlockHash:     t.blockHash,
		EventOutcome:  t.eventOutcome,
		Reason:        t.reason,
		StatusLog:     statusLog,
		CreatedAt:     t.createdAt,
		UpdatedAt:     t.updatedAt,
	}
}
