package signer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	"github.com/shivarthu/shivarthu-signer/pkg/stats"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

const (
	successPallet = "System"
	successMethod = "ExtrinsicSuccess"
	failedMethod  = "ExtrinsicFailed"
)

// Notifier is notified once a transaction reaches a terminal state.
type Notifier interface {
	NotifyTransaction(info domain.TransactionInfo)
}

// ErrServiceClosed is returned when submitting to a closed signer.
var ErrServiceClosed = errors.New("signer is closed")

type trackedTx struct {
	tx     *domain.Transaction
	cancel context.CancelFunc
	// terminatedAt is zero until the transaction reaches a terminal state.
	terminatedAt time.Time
}

// Service drives transactions from creation to a terminal state: it waits
// for the session to be unlocked, signs and submits the payload exactly once
// and follows the status stream of the submitted extrinsic.
type Service struct {
	session   *domain.Session
	deriver   *wallet.Deriver
	chain     ports.ChainClient
	endpoint  string
	timeout   time.Duration
	retention time.Duration
	notifier  Notifier

	lock   sync.RWMutex
	txs    map[string]*trackedTx
	closed bool
	wg     sync.WaitGroup
}

// NewService returns a new signer. A zero timeout lets transactions wait for
// an unlock and track their status for as long as needed. Terminated
// transactions are forgotten once older than retention, a zero retention
// keeps them until Forget is called. The notifier is optional.
func NewService(
	session *domain.Session, deriver *wallet.Deriver, chain ports.ChainClient,
	endpoint string, timeout, retention time.Duration, notifier Notifier,
) (*Service, error) {
	if session == nil {
		return nil, fmt.Errorf("missing session")
	}
	if deriver == nil {
		return nil, fmt.Errorf("missing key deriver")
	}
	if chain == nil {
		return nil, fmt.Errorf("missing chain client")
	}
	if len(endpoint) <= 0 {
		return nil, fmt.Errorf("missing node endpoint")
	}
	return &Service{
		session:   session,
		deriver:   deriver,
		chain:     chain,
		endpoint:  endpoint,
		timeout:   timeout,
		retention: retention,
		notifier:  notifier,
		txs:       make(map[string]*trackedTx),
	}, nil
}

// Submit creates a new transaction for the payload and starts driving it in
// background. The returned transaction can be observed with its Subscribe
// and Done methods.
func (s *Service) Submit(
	_ context.Context, payload domain.Payload,
) (*domain.Transaction, error) {
	tx, err := domain.NewTransaction(payload)
	if err != nil {
		return nil, err
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		cancel()
		return nil, ErrServiceClosed
	}
	s.evictExpired()
	s.txs[tx.ID] = &trackedTx{tx: tx, cancel: cancel}
	s.wg.Add(1)
	s.lock.Unlock()

	log.Debugf("created transaction %s: %s", tx.ID, tx.Info().Description)

	go func() {
		defer s.wg.Done()
		defer cancel()
		s.Run(ctx, tx)
	}()
	return tx, nil
}

// Run drives the given transaction until it reaches a terminal state or ctx
// is done. It can safely be called more than once for the same transaction:
// the payload is submitted at most once.
func (s *Service) Run(ctx context.Context, tx *domain.Transaction) {
	if tx.State() >= domain.TxStateSubmitting {
		return
	}

	snapshot, err := s.waitForUnlock(ctx, tx)
	if err != nil {
		if tx.Abort(reasonFromContext(err)) {
			s.terminated(tx)
		}
		return
	}

	if !tx.BeginSubmit(snapshot.AccountID) {
		return
	}

	if err := s.submitAndTrack(ctx, tx, snapshot); err != nil {
		if tx.Fail(err.Error()) {
			s.terminated(tx)
		}
		return
	}
	s.terminated(tx)
}

// Get returns the transaction with the given id.
func (s *Service) Get(id string) (*domain.Transaction, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	tracked, ok := s.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return tracked.tx, nil
}

// List returns a copy of all known transactions, the oldest first.
func (s *Service) List() []domain.TransactionInfo {
	s.lock.Lock()
	s.evictExpired()
	infos := make([]domain.TransactionInfo, 0, len(s.txs))
	for _, tracked := range s.txs {
		infos = append(infos, tracked.tx.Info())
	}
	s.lock.Unlock()

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].CreatedAt == infos[j].CreatedAt {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt < infos[j].CreatedAt
	})
	return infos
}

// Discard stops driving the transaction. An extrinsic already submitted is
// not retracted, its status is just no longer followed.
func (s *Service) Discard(id string) error {
	s.lock.RLock()
	tracked, ok := s.txs[id]
	s.lock.RUnlock()
	if !ok {
		return domain.ErrTransactionNotFound
	}

	tracked.cancel()
	return nil
}

// Forget removes a terminated transaction from the known ones.
func (s *Service) Forget(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	tracked, ok := s.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if !tracked.tx.State().IsTerminal() {
		return domain.ErrTransactionInProgress
	}
	delete(s.txs, id)
	return nil
}

// Balance returns the balance of the given address, read from the node.
func (s *Service) Balance(
	ctx context.Context, address string,
) (*ports.AccountBalance, error) {
	accountID, _, err := wallet.DecodeSS58(address)
	if err != nil {
		return nil, err
	}

	conn, err := s.chain.Connect(ctx, s.endpoint)
	if err != nil {
		return nil, wrapError(ports.ErrConnect, err)
	}
	defer conn.Close()

	balance, err := conn.Balance(ctx, accountID)
	if err != nil {
		return nil, wrapError(ports.ErrQuery, err)
	}
	return &balance, nil
}

// Close stops driving all the transactions and waits for their goroutines,
// notifications included, to return. Submit fails once closed.
func (s *Service) Close() {
	s.lock.Lock()
	s.closed = true
	for _, tracked := range s.txs {
		tracked.cancel()
	}
	s.lock.Unlock()

	s.wg.Wait()
}

// evictExpired forgets the transactions terminated since longer than the
// retention. Must be called with the lock held.
func (s *Service) evictExpired() {
	if s.retention <= 0 {
		return
	}
	for id, tracked := range s.txs {
		if !tracked.terminatedAt.IsZero() &&
			time.Since(tracked.terminatedAt) > s.retention {
			delete(s.txs, id)
			log.Debugf("evicted transaction %s", id)
		}
	}
}

func (s *Service) waitForUnlock(
	ctx context.Context, tx *domain.Transaction,
) (domain.SessionSnapshot, error) {
	for {
		changed := s.session.Changed()
		snapshot := s.session.Snapshot()
		if snapshot.Unlocked {
			return snapshot, nil
		}

		if tx.AwaitUnlock() {
			log.Debugf("transaction %s is waiting for an account to be unlocked", tx.ID)
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return domain.SessionSnapshot{}, ctx.Err()
		}
	}
}

func (s *Service) submitAndTrack(
	ctx context.Context, tx *domain.Transaction, snapshot domain.SessionSnapshot,
) error {
	key, _, err := s.deriver.Derive(snapshot.Mnemonic)
	if err != nil {
		return fmt.Errorf("failed to derive signing key: %s", err)
	}

	conn, err := s.chain.Connect(ctx, s.endpoint)
	if err != nil {
		return wrapError(ports.ErrConnect, err)
	}
	defer conn.Close()

	stream, err := conn.SignAndSubmit(ctx, tx.Payload, key)
	if err != nil {
		return wrapError(ports.ErrSubmit, err)
	}
	defer stream.Close()

	stats.TransactionSubmitted()
	tx.Track(stream.ExtrinsicHash())
	log.Debugf(
		"transaction %s submitted with extrinsic %s",
		tx.ID, stream.ExtrinsicHash(),
	)

	return s.track(ctx, tx, stream)
}

// track follows the status stream in order until a terminal status. It
// returns the failure reason as error, if any.
func (s *Service) track(
	ctx context.Context, tx *domain.Transaction, stream ports.StatusStream,
) error {
	for {
		status, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New(domain.ReasonStreamClosed)
			}
			if ctx.Err() != nil {
				return errors.New(reasonFromContext(ctx.Err()))
			}
			return err
		}

		tx.AppendStatus(status.String())
		log.Debugf("transaction %s: %s", tx.ID, status)

		switch status.Kind {
		case ports.TxStatusFinalized:
			s.finalize(ctx, tx, status)
			return nil
		case ports.TxStatusInvalid:
			return errors.New(domain.ReasonInvalid)
		case ports.TxStatusDropped:
			return errors.New(domain.ReasonDropped)
		case ports.TxStatusUsurped:
			return errors.New(domain.ReasonUsurped)
		case ports.TxStatusFinalityTimeout:
			return errors.New(domain.ReasonFinalityTimeout)
		case ports.TxStatusError:
			if len(status.Reason) > 0 {
				return errors.New(status.Reason)
			}
			return errors.New(status.Kind.String())
		}
	}
}

func (s *Service) finalize(
	ctx context.Context, tx *domain.Transaction, status ports.TxStatus,
) {
	log.Infof(
		"transaction %s is finalized in block %s",
		tx.Info().ExtrinsicHash, status.BlockHash,
	)

	if status.Block == nil {
		tx.Finalize(status.BlockHash, "events unavailable: missing block reference")
		return
	}

	events, err := status.Block.FetchEvents(ctx)
	if err != nil {
		log.WithError(err).Warnf("failed to fetch events for transaction %s", tx.ID)
		tx.Finalize(status.BlockHash, fmt.Sprintf("events unavailable: %s", err))
		return
	}

	outcome := ""
	for _, event := range events {
		if event.Pallet != successPallet {
			continue
		}
		if event.Method == successMethod && len(outcome) <= 0 {
			outcome = fmt.Sprintf("extrinsic succeeded: %s", event.Data)
		}
		if event.Method == failedMethod {
			tx.AppendStatus(fmt.Sprintf("extrinsic failed: %s", event.Data))
		}
	}
	tx.Finalize(status.BlockHash, outcome)
}

func (s *Service) terminated(tx *domain.Transaction) {
	info := tx.Info()
	elapsed := time.Since(time.Unix(info.CreatedAt, 0))
	stats.TransactionTerminated(info.State, info.Reason, elapsed)

	if info.State == domain.TxStateFailed.String() {
		log.Warnf("transaction %s failed: %s", info.ID, info.Reason)
	} else {
		log.Infof("transaction %s finalized: %s", info.ID, info.EventOutcome)
	}

	s.lock.Lock()
	if tracked, ok := s.txs[tx.ID]; ok && tracked.tx == tx {
		tracked.terminatedAt = time.Now()
	}
	s.lock.Unlock()

	// Notified from the driving goroutine so that Close waits for it.
	if s.notifier != nil {
		s.notifier.NotifyTransaction(info)
	}
}

func reasonFromContext(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ReasonTimeout
	}
	return domain.ReasonDiscarded
}

func wrapError(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %s", kind, err)
}
