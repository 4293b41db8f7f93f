package sidecar_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	"github.com/shivarthu/shivarthu-signer/internal/infrastructure/chain/sidecar"
	"github.com/stretchr/testify/require"
)

const (
	blockHash     = "0x5c0d1176a568c1f92944340dbfed9e9c530ebca703c85910e7164cb7d1c9e47b"
	extrinsicHash = "0x7d2b3d0f4c0bd2a8e2b3a1a1f7a77c8de4d6ef9d0a5e1f6a1c0a9d7a0b1c2d3e"
	blockJSON     = `{
  "number": "100",
  "hash": "` + blockHash + `",
  "extrinsics": [
    {
      "method": {"pallet": "timestamp", "method": "set"},
      "hash": "0x01",
      "events": [
        {"method": {"pallet": "system", "method": "ExtrinsicSuccess"}, "data": [{"weight": "1"}]}
      ],
      "success": true
    },
    {
      "method": {"pallet": "balances", "method": "transferKeepAlive"},
      "hash": "` + extrinsicHash + `",
      "events": [
        {"method": {"pallet": "balances", "method": "Withdraw"}, "data": ["5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty", "125000000"]},
        {"method": {"pallet": "system", "method": "ExtrinsicSuccess"}, "data": [{"weight": "1000"}]}
      ],
      "success": true
    }
  ]
}`
)

func TestFetchExtrinsicEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/blocks/"+blockHash {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			//nolint
			w.Write([]byte(blockJSON))
		},
	))
	defer server.Close()

	fetcher, err := sidecar.NewFetcher(sidecar.Opts{BaseURL: server.URL + "/"})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		events, err := fetcher.FetchExtrinsicEvents(
			context.Background(), blockHash, extrinsicHash,
		)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, "Balances", events[0].Pallet)
		require.Equal(t, "Withdraw", events[0].Method)
		require.JSONEq(
			t,
			`["5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty", "125000000"]`,
			events[0].Data,
		)
		require.Equal(t, "System", events[1].Pallet)
		require.Equal(t, "ExtrinsicSuccess", events[1].Method)
	})

	t.Run("extrinsic not in block", func(t *testing.T) {
		events, err := fetcher.FetchExtrinsicEvents(
			context.Background(), blockHash, "0xff",
		)
		require.ErrorIs(t, err, ports.ErrFetchEvents)
		require.Nil(t, events)
	})

	t.Run("unknown block", func(t *testing.T) {
		events, err := fetcher.FetchExtrinsicEvents(
			context.Background(), "0x00", extrinsicHash,
		)
		require.ErrorIs(t, err, ports.ErrFetchEvents)
		require.Contains(t, err.Error(), "404")
		require.Nil(t, events)
	})
}

func TestFetchEventsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			//nolint
			w.Write([]byte(blockJSON))
		},
	))
	defer server.Close()

	fetcher, err := sidecar.NewFetcher(sidecar.Opts{BaseURL: server.URL})
	require.NoError(t, err)

	events, err := fetcher.FetchExtrinsicEvents(
		context.Background(), blockHash, extrinsicHash,
	)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFailingNewFetcher(t *testing.T) {
	fetcher, err := sidecar.NewFetcher(sidecar.Opts{BaseURL: "ws://127.0.0.1:8080"})
	require.Error(t, err)
	require.Nil(t, fetcher)
}
