package pubsub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultRetryMax is the number of retries of a webhook replying with a
	// 5xx or 429 status, or unreachable.
	DefaultRetryMax = 2

	retryWaitMin = 100 * time.Millisecond
	retryWaitMax = time.Second
	// Replies of the webhooks are only logged.
	maxReplySize = 1 << 12
)

type client struct {
	*retryablehttp.Client
}

func newHTTPClient(requestTimeout time.Duration, retryMax int) *client {
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = requestTimeout
	c.RetryMax = retryMax
	c.RetryWaitMin = retryWaitMin
	c.RetryWaitMax = retryWaitMax
	c.Logger = webhookLogger{}
	// Hand back the last reply once retries are exhausted, its status is
	// reported to the caller.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &client{c}
}

// post sends body to url and returns the status and the (truncated) body of
// the reply. The request, retries included, is bound to ctx.
func (c *client) post(
	ctx context.Context, url string, body []byte, header map[string]string,
) (int, string, error) {
	req, err := retryablehttp.NewRequestWithContext(
		ctx, http.MethodPost, url, body,
	)
	if err != nil {
		return 0, "", err
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}

	rs, err := c.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer rs.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(rs.Body, maxReplySize))
	if err != nil {
		return -1, "", err
	}
	return rs.StatusCode, string(reply), nil
}

// webhookLogger routes retryablehttp logs to logrus, nothing above warn.
type webhookLogger struct{}

func (webhookLogger) Error(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Warn(msg)
}

func (webhookLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (webhookLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Trace(msg)
}

func (webhookLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Debug(msg)
}

func fields(keysAndValues []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
