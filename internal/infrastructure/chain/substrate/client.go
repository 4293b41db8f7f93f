package substrate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second

	methodAccountNextIndex = "system_accountNextIndex"
	methodGetBlockHash     = "chain_getBlockHash"
	methodRuntimeVersion   = "state_getRuntimeVersion"
	methodSubmitAndWatch   = "author_submitAndWatchExtrinsic"
	methodUnwatchExtrinsic = "author_unwatchExtrinsic"
)

// EventsFetcher returns the decoded events emitted by an extrinsic included
// in a block.
type EventsFetcher interface {
	FetchExtrinsicEvents(
		ctx context.Context, blockHash, extrinsicHash string,
	) ([]ports.DecodedEvent, error)
}

type ClientOpts struct {
	// Events is used to resolve the events of finalized extrinsics. Finalized
	// blocks fail to fetch events if not set.
	Events EventsFetcher
	// SS58Prefix is the address format the node expects in RPC params.
	SS58Prefix uint16
	// MetadataHashExtension must be set for runtimes with the
	// CheckMetadataHash signed extension.
	MetadataHashExtension bool
	// HandshakeTimeout defaults to DefaultHandshakeTimeout if zero.
	HandshakeTimeout time.Duration
}

type client struct {
	opts   ClientOpts
	dialer *websocket.Dialer
}

// NewClient returns a chain client talking JSON-RPC over websocket with a
// substrate node.
func NewClient(opts ClientOpts) ports.ChainClient {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	return &client{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
	}
}

func (c *client) Connect(
	ctx context.Context, endpoint string,
) (ports.Connection, error) {
	ws, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrConnect, err)
	}
	log.Debugf("connected to node %s", endpoint)

	return &connection{
		rpc:  newRPCConn(ws),
		opts: c.opts,
	}, nil
}

type runtimeVersion struct {
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

type connection struct {
	rpc  *rpcConn
	opts ClientOpts
}

func (c *connection) SignAndSubmit(
	ctx context.Context, payload domain.Payload, key wallet.Keypair,
) (ports.StatusStream, error) {
	extrinsic, err := c.buildExtrinsic(ctx, payload, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrSubmit, err)
	}

	sub, err := c.rpc.subscribe(
		ctx, methodSubmitAndWatch, methodUnwatchExtrinsic, encodeHex(extrinsic),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrSubmit, err)
	}

	return &statusStream{
		sub:    sub,
		hash:   extrinsicHash(extrinsic),
		events: c.opts.Events,
	}, nil
}

func (c *connection) Close() {
	c.rpc.close()
}

func (c *connection) buildExtrinsic(
	ctx context.Context, payload domain.Payload, key wallet.Keypair,
) ([]byte, error) {
	call, err := payload.SignableBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %s", err)
	}

	address, err := wallet.EncodeSS58(key.AccountID(), c.opts.SS58Prefix)
	if err != nil {
		return nil, err
	}

	var nonce uint64
	if err := c.rpc.call(ctx, &nonce, methodAccountNextIndex, address); err != nil {
		return nil, fmt.Errorf("failed to get account nonce: %w", err)
	}

	var genesisHashHex string
	if err := c.rpc.call(ctx, &genesisHashHex, methodGetBlockHash, 0); err != nil {
		return nil, fmt.Errorf("failed to get genesis hash: %w", err)
	}
	genesisHash, err := decodeHex(genesisHashHex)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis hash: %w", err)
	}

	var version runtimeVersion
	if err := c.rpc.call(ctx, &version, methodRuntimeVersion); err != nil {
		return nil, fmt.Errorf("failed to get runtime version: %w", err)
	}

	log.Debugf(
		"signing extrinsic for %s with nonce %d (spec %d, tx %d)",
		address, nonce, version.SpecVersion, version.TransactionVersion,
	)

	return buildExtrinsic(extrinsicOpts{
		call:               call,
		nonce:              nonce,
		specVersion:        version.SpecVersion,
		transactionVersion: version.TransactionVersion,
		genesisHash:        genesisHash,
		metadataHash:       c.opts.MetadataHashExtension,
	}, key)
}
