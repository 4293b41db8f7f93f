package substrate_test

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	"github.com/shivarthu/shivarthu-signer/internal/infrastructure/chain/substrate"
	"github.com/shivarthu/shivarthu-signer/pkg/calls"
	"github.com/shivarthu/shivarthu-signer/pkg/wallet"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

const (
	testMnemonic    = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"
	testGenesisHash = "0xabababababababababababababababababababababababababababababababab"
	testBlockHash   = "0x5c0d1176a568c1f92944340dbfed9e9c530ebca703c85910e7164cb7d1c9e47b"
	testSubID       = "sub-1"
	testNonce       = 7
)

func TestSignAndSubmit(t *testing.T) {
	node := newTestNode(t, []string{
		`"ready"`,
		`{"broadcast":["peer1"]}`,
		`{"inBlock":"` + testBlockHash + `"}`,
		`{"finalized":"` + testBlockHash + `"}`,
	})
	events := &mockEventsFetcher{}
	client := substrate.NewClient(substrate.ClientOpts{
		Events:     events,
		SS58Prefix: wallet.DefaultSS58Prefix,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := client.Connect(ctx, node.url())
	require.NoError(t, err)
	defer conn.Close()

	key, address := deriveTestKey(t)
	remark, err := calls.NewRemark("hello")
	require.NoError(t, err)

	stream, err := conn.SignAndSubmit(ctx, remark, key)
	require.NoError(t, err)
	defer stream.Close()

	require.Equal(t, address, node.nonceAddress())

	extrinsic := node.submittedExtrinsic()
	hash := blake2b.Sum256(extrinsic)
	require.Equal(t, "0x"+hex.EncodeToString(hash[:]), stream.ExtrinsicHash())

	expectedKinds := []ports.TxStatusKind{
		ports.TxStatusReady,
		ports.TxStatusBroadcast,
		ports.TxStatusInBlock,
		ports.TxStatusFinalized,
	}
	var last ports.TxStatus
	for _, kind := range expectedKinds {
		status, err := stream.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, kind, status.Kind)
		last = status
	}

	require.Equal(t, testBlockHash, last.BlockHash)
	require.NotNil(t, last.Block)
	require.Equal(t, testBlockHash, last.Block.Hash())

	expectedEvents := []ports.DecodedEvent{
		{Pallet: "System", Method: "ExtrinsicSuccess", Data: `[]`},
	}
	events.On(
		"FetchExtrinsicEvents", mock.Anything, testBlockHash, stream.ExtrinsicHash(),
	).Return(expectedEvents, nil)

	fetched, err := last.Block.FetchEvents(ctx)
	require.NoError(t, err)
	require.Equal(t, expectedEvents, fetched)
	events.AssertExpectations(t)
}

func TestStreamEndsWithConnection(t *testing.T) {
	node := newTestNode(t, []string{`"ready"`})
	node.closeAfterStatuses = true
	client := substrate.NewClient(substrate.ClientOpts{
		SS58Prefix: wallet.DefaultSS58Prefix,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := client.Connect(ctx, node.url())
	require.NoError(t, err)
	defer conn.Close()

	key, _ := deriveTestKey(t)
	stream, err := conn.SignAndSubmit(ctx, rawCall(t), key)
	require.NoError(t, err)

	status, err := stream.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, ports.TxStatusReady, status.Kind)

	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestFinalizedWithoutEventsSource(t *testing.T) {
	node := newTestNode(t, []string{`{"finalized":"` + testBlockHash + `"}`})
	client := substrate.NewClient(substrate.ClientOpts{
		SS58Prefix: wallet.DefaultSS58Prefix,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := client.Connect(ctx, node.url())
	require.NoError(t, err)
	defer conn.Close()

	key, _ := deriveTestKey(t)
	stream, err := conn.SignAndSubmit(ctx, rawCall(t), key)
	require.NoError(t, err)

	status, err := stream.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, ports.TxStatusFinalized, status.Kind)

	_, err = status.Block.FetchEvents(ctx)
	require.ErrorIs(t, err, ports.ErrFetchEvents)
}

func TestFailingConnect(t *testing.T) {
	client := substrate.NewClient(substrate.ClientOpts{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Connect(ctx, "ws://127.0.0.1:1")
	require.ErrorIs(t, err, ports.ErrConnect)
}

func TestFailingSubmit(t *testing.T) {
	node := newTestNode(t, nil)
	node.submitError = `{"code":1010,"message":"Invalid Transaction","data":"Inability to pay some fees"}`
	client := substrate.NewClient(substrate.ClientOpts{
		SS58Prefix: wallet.DefaultSS58Prefix,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := client.Connect(ctx, node.url())
	require.NoError(t, err)
	defer conn.Close()

	key, _ := deriveTestKey(t)
	stream, err := conn.SignAndSubmit(ctx, rawCall(t), key)
	require.ErrorIs(t, err, ports.ErrSubmit)
	require.Contains(t, err.Error(), "Inability to pay some fees")
	require.Nil(t, stream)
}

func TestBalance(t *testing.T) {
	key, _ := deriveTestKey(t)
	accountID := key.AccountID()

	reserved := new(big.Int).Lsh(big.NewInt(1), 64)
	reserved.Add(reserved, big.NewInt(3))

	truncatedID := make([]byte, 32)
	truncatedID[0] = 1

	node := newTestNode(t, nil)
	node.storage = map[string]string{
		systemAccountKey(accountID): encodeAccountInfo(
			5, big.NewInt(1_500_000_000_000), reserved, big.NewInt(1000),
		),
		systemAccountKey(truncatedID): "0x0500000001000000",
	}
	client := substrate.NewClient(substrate.ClientOpts{
		SS58Prefix: wallet.DefaultSS58Prefix,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := client.Connect(ctx, node.url())
	require.NoError(t, err)
	defer conn.Close()

	t.Run("known account", func(t *testing.T) {
		balance, err := conn.Balance(ctx, accountID)
		require.NoError(t, err)
		require.Equal(t, uint32(5), balance.Nonce)
		require.Equal(t, "1500000000000", balance.Free.String())
		require.Equal(t, reserved.String(), balance.Reserved.String())
		require.Equal(t, "1000", balance.Frozen.String())
	})

	t.Run("unknown account", func(t *testing.T) {
		balance, err := conn.Balance(ctx, make([]byte, 32))
		require.NoError(t, err)
		require.Zero(t, balance.Nonce)
		require.Zero(t, balance.Free.Sign())
		require.Zero(t, balance.Reserved.Sign())
		require.Zero(t, balance.Frozen.Sign())
	})

	t.Run("invalid account id", func(t *testing.T) {
		_, err := conn.Balance(ctx, []byte{1, 2, 3})
		require.ErrorIs(t, err, ports.ErrQuery)
	})

	t.Run("truncated account info", func(t *testing.T) {
		_, err := conn.Balance(ctx, truncatedID)
		require.ErrorIs(t, err, ports.ErrQuery)
	})
}

type mockEventsFetcher struct {
	mock.Mock
}

func (m *mockEventsFetcher) FetchExtrinsicEvents(
	ctx context.Context, blockHash, extrinsicHash string,
) ([]ports.DecodedEvent, error) {
	args := m.Called(ctx, blockHash, extrinsicHash)
	var res []ports.DecodedEvent
	if a := args.Get(0); a != nil {
		res = a.([]ports.DecodedEvent)
	}
	return res, args.Error(1)
}

type nodeRequest struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// testNode is a minimal substrate node speaking JSON-RPC over websocket.
type testNode struct {
	t                  *testing.T
	server             *httptest.Server
	statuses           []string
	submitError        string
	closeAfterStatuses bool

	// storage values by hex key, served by state_getStorage.
	storage map[string]string

	lock      sync.Mutex
	address   string
	extrinsic []byte
}

func newTestNode(t *testing.T, statuses []string) *testNode {
	n := &testNode{t: t, statuses: statuses}
	n.server = httptest.NewServer(http.HandlerFunc(n.handle))
	t.Cleanup(n.server.Close)
	return n
}

func (n *testNode) url() string {
	return "ws" + strings.TrimPrefix(n.server.URL, "http")
}

func (n *testNode) nonceAddress() string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.address
}

func (n *testNode) submittedExtrinsic() []byte {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.extrinsic
}

func (n *testNode) handle(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	for {
		req := nodeRequest{}
		if err := ws.ReadJSON(&req); err != nil {
			return
		}

		switch req.Method {
		case "system_accountNextIndex":
			var address string
			//nolint
			json.Unmarshal(req.Params[0], &address)
			n.lock.Lock()
			n.address = address
			n.lock.Unlock()
			n.reply(ws, req.ID, testNonce)
		case "chain_getBlockHash":
			n.reply(ws, req.ID, testGenesisHash)
		case "state_getRuntimeVersion":
			n.reply(ws, req.ID, map[string]interface{}{
				"specName":           "shivarthu",
				"specVersion":        100,
				"transactionVersion": 1,
			})
		case "author_submitAndWatchExtrinsic":
			var extrinsicHex string
			//nolint
			json.Unmarshal(req.Params[0], &extrinsicHex)
			extrinsic, _ := hex.DecodeString(strings.TrimPrefix(extrinsicHex, "0x"))
			n.lock.Lock()
			n.extrinsic = extrinsic
			n.lock.Unlock()

			if len(n.submitError) > 0 {
				n.write(ws, `{"jsonrpc":"2.0","id":`+itoa(req.ID)+`,"error":`+n.submitError+`}`)
				continue
			}

			// the first status is sent before the subscription id on purpose.
			statuses := n.statuses
			if len(statuses) > 0 {
				n.notify(ws, statuses[0])
				statuses = statuses[1:]
			}
			n.reply(ws, req.ID, testSubID)
			for _, status := range statuses {
				n.notify(ws, status)
			}
			if n.closeAfterStatuses {
				return
			}
		case "author_unwatchExtrinsic":
			n.reply(ws, req.ID, true)
		case "state_getStorage":
			var key string
			//nolint
			json.Unmarshal(req.Params[0], &key)
			if value, ok := n.storage[key]; ok {
				n.reply(ws, req.ID, value)
				continue
			}
			n.reply(ws, req.ID, nil)
		default:
			n.write(ws, `{"jsonrpc":"2.0","id":`+itoa(req.ID)+`,"error":{"code":-32601,"message":"Method not found"}}`)
		}
	}
}

func (n *testNode) reply(ws *websocket.Conn, id uint64, result interface{}) {
	//nolint
	ws.WriteJSON(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func (n *testNode) notify(ws *websocket.Conn, status string) {
	n.write(ws, `{"jsonrpc":"2.0","method":"author_extrinsicUpdate","params":{"subscription":"`+
		testSubID+`","result":`+status+`}}`)
}

func (n *testNode) write(ws *websocket.Conn, msg string) {
	//nolint
	ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func itoa(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func deriveTestKey(t *testing.T) (wallet.Keypair, string) {
	deriver, err := wallet.NewDeriver(wallet.DeriverOpts{
		Scheme:     wallet.SchemeSr25519,
		SS58Prefix: wallet.DefaultSS58Prefix,
	})
	require.NoError(t, err)

	key, address, err := deriver.Derive(testMnemonic)
	require.NoError(t, err)
	return key, address
}

func systemAccountKey(accountID []byte) string {
	h, _ := blake2b.New(16, nil)
	h.Write(accountID)
	return "0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9" +
		hex.EncodeToString(h.Sum(nil)) + hex.EncodeToString(accountID)
}

func encodeAccountInfo(nonce uint32, free, reserved, frozen *big.Int) string {
	data := make([]byte, 16, 16+16*4)
	binary.LittleEndian.PutUint32(data, nonce)
	binary.LittleEndian.PutUint32(data[4:], 0)
	binary.LittleEndian.PutUint32(data[8:], 1)
	for _, amount := range []*big.Int{free, reserved, frozen, new(big.Int)} {
		le := make([]byte, 16)
		be := amount.FillBytes(make([]byte, 16))
		for i := range be {
			le[i] = be[15-i]
		}
		data = append(data, le...)
	}
	return "0x" + hex.EncodeToString(data)
}

func rawCall(t *testing.T) *calls.Call {
	call, err := calls.NewRawCall("0x00001468656c6c6f", "remark")
	require.NoError(t, err)
	return call
}
