package substrate

import (
	"encoding/json"
	"fmt"

	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
)

var simpleStatuses = map[string]ports.TxStatusKind{
	"future":  ports.TxStatusFuture,
	"ready":   ports.TxStatusReady,
	"dropped": ports.TxStatusDropped,
	"invalid": ports.TxStatusInvalid,
}

var blockStatuses = map[string]ports.TxStatusKind{
	"inBlock":         ports.TxStatusInBlock,
	"retracted":       ports.TxStatusRetracted,
	"finalityTimeout": ports.TxStatusFinalityTimeout,
	"finalized":       ports.TxStatusFinalized,
}

// parseStatus decodes the result of an author_extrinsicUpdate notification.
// Statuses without data are plain strings, the others are single key
// objects, eg. {"inBlock": "0x..."}.
func parseStatus(data json.RawMessage) (ports.TxStatus, error) {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		kind, ok := simpleStatuses[name]
		if !ok {
			return ports.TxStatus{}, fmt.Errorf("unknown extrinsic status %q", name)
		}
		return ports.TxStatus{Kind: kind}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ports.TxStatus{}, fmt.Errorf("malformed extrinsic status: %w", err)
	}
	if len(fields) != 1 {
		return ports.TxStatus{}, fmt.Errorf(
			"malformed extrinsic status %s", string(data),
		)
	}

	for key, value := range fields {
		if kind, ok := blockStatuses[key]; ok {
			var hash string
			if err := json.Unmarshal(value, &hash); err != nil {
				return ports.TxStatus{}, fmt.Errorf("malformed %s status: %w", key, err)
			}
			return ports.TxStatus{Kind: kind, BlockHash: hash}, nil
		}

		switch key {
		case "broadcast":
			var peers []string
			if err := json.Unmarshal(value, &peers); err != nil {
				return ports.TxStatus{}, fmt.Errorf("malformed broadcast status: %w", err)
			}
			return ports.TxStatus{Kind: ports.TxStatusBroadcast, Peers: peers}, nil
		case "usurped":
			var hash string
			if err := json.Unmarshal(value, &hash); err != nil {
				return ports.TxStatus{}, fmt.Errorf("malformed usurped status: %w", err)
			}
			return ports.TxStatus{Kind: ports.TxStatusUsurped, Reason: hash}, nil
		}
		return ports.TxStatus{}, fmt.Errorf("unknown extrinsic status %q", key)
	}
	return ports.TxStatus{}, fmt.Errorf("malformed extrinsic status %s", string(data))
}
