package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shivarthu/shivarthu-signer/internal/core/ports"
	"github.com/shivarthu/shivarthu-signer/pkg/circuitbreaker"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

const (
	DefaultRateLimit      = 10
	DefaultRequestTimeout = 15 * time.Second
	DefaultRetryMax       = 3
)

// Opts ...
type Opts struct {
	// BaseURL is the root url of the sidecar API, eg. http://127.0.0.1:8080.
	BaseURL string
	// RateLimit is the max number of requests per second.
	RateLimit      int
	RequestTimeout time.Duration
	RetryMax       int
}

type method struct {
	Pallet string `json:"pallet"`
	Method string `json:"method"`
}

type event struct {
	Method method          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

type extrinsic struct {
	Hash   string  `json:"hash"`
	Events []event `json:"events"`
}

type block struct {
	Hash       string      `json:"hash"`
	Extrinsics []extrinsic `json:"extrinsics"`
}

// Fetcher resolves the decoded events of an extrinsic from the blocks
// endpoint of a Substrate API Sidecar instance.
type Fetcher struct {
	baseURL string
	client  *retryablehttp.Client
	cb      *gobreaker.CircuitBreaker
	limiter ratelimit.Limiter
}

func NewFetcher(opts Opts) (*Fetcher, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") &&
		!strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("invalid events url %q", opts.BaseURL)
	}
	rateLimit := opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	retryMax := opts.RetryMax
	if retryMax <= 0 {
		retryMax = DefaultRetryMax
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = timeout
	client.RetryMax = retryMax
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = leveledLogger{}

	return &Fetcher{
		baseURL: baseURL,
		client:  client,
		cb:      circuitbreaker.NewCircuitBreaker("sidecar"),
		limiter: ratelimit.New(rateLimit),
	}, nil
}

// FetchExtrinsicEvents returns the events of the extrinsic with the given
// hash included in the given block.
func (f *Fetcher) FetchExtrinsicEvents(
	ctx context.Context, blockHash, extrinsicHash string,
) ([]ports.DecodedEvent, error) {
	b, err := f.getBlock(ctx, blockHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrFetchEvents, err)
	}

	for _, ext := range b.Extrinsics {
		if !strings.EqualFold(ext.Hash, extrinsicHash) {
			continue
		}
		events := make([]ports.DecodedEvent, 0, len(ext.Events))
		for _, e := range ext.Events {
			data := string(e.Data)
			if len(data) <= 0 {
				data = "[]"
			}
			events = append(events, ports.DecodedEvent{
				Pallet: palletName(e.Method.Pallet),
				Method: e.Method.Method,
				Data:   data,
			})
		}
		return events, nil
	}

	return nil, fmt.Errorf(
		"%w: extrinsic %s not found in block %s",
		ports.ErrFetchEvents, extrinsicHash, blockHash,
	)
}

func (f *Fetcher) getBlock(ctx context.Context, hash string) (*block, error) {
	f.limiter.Take()

	res, err := f.cb.Execute(func() (interface{}, error) {
		url := fmt.Sprintf("%s/blocks/%s", f.baseURL, hash)
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf(
				"sidecar replied with status %d: %s",
				resp.StatusCode, strings.TrimSpace(string(body)),
			)
		}

		b := &block{}
		if err := json.Unmarshal(body, b); err != nil {
			return nil, fmt.Errorf("failed to decode block: %w", err)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*block), nil
}

// palletName turns sidecar's camelCase pallet names into the runtime ones,
// eg. system -> System.
func palletName(name string) string {
	if len(name) <= 0 {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// leveledLogger routes retryablehttp logs to logrus.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Error(msg)
}

func (leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Trace(msg)
}

func (leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Warn(msg)
}

func fields(keysAndValues []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
