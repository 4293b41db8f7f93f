package substrate

import (
	"context"
	"fmt"

	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
)

type statusStream struct {
	sub    *subscription
	hash   string
	events EventsFetcher
}

func (s *statusStream) ExtrinsicHash() string {
	return s.hash
}

func (s *statusStream) Next(ctx context.Context) (ports.TxStatus, error) {
	msg, err := s.sub.next(ctx)
	if err != nil {
		return ports.TxStatus{}, err
	}

	status, err := parseStatus(msg)
	if err != nil {
		return ports.TxStatus{Kind: ports.TxStatusError, Reason: err.Error()}, nil
	}
	if status.Kind == ports.TxStatusFinalized {
		status.Block = &blockRef{
			hash:          status.BlockHash,
			extrinsicHash: s.hash,
			events:        s.events,
		}
	}
	return status, nil
}

func (s *statusStream) Close() {
	s.sub.close()
}

type blockRef struct {
	hash          string
	extrinsicHash string
	events        EventsFetcher
}

func (b *blockRef) Hash() string {
	return b.hash
}

func (b *blockRef) FetchEvents(ctx context.Context) ([]ports.DecodedEvent, error) {
	if b.events == nil {
		return nil, fmt.Errorf("%w: no events source configured", ports.ErrFetchEvents)
	}
	return b.events.FetchExtrinsicEvents(ctx, b.hash, b.extrinsicHash)
}
