// Package awsclient sends sigv4-signed requests with retries, pacing and
// logging. Every retry attempt is signed fresh so a stale timestamp never
// outlives the server's acceptance window.
package awsclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/hnakamur/awsv4sign-util/sigv4"
)

const (
	defaultRetries   = 10
	defaultRetryWait = 50 * time.Millisecond
	maxRetryWait     = 30 * time.Second
)

// Options configure a Client.
type Options struct {
	// Retries is the number of retry attempts after the first request.
	// Zero means the default of 10; negative disables retries.
	Retries int
	// InitialRetryWait scales the backoff, defaulting to 50ms.
	InitialRetryWait time.Duration
	// MaxRetryWait caps a single backoff sleep, defaulting to 30s.
	MaxRetryWait time.Duration
	// RequestsPerSec paces outgoing requests; zero means unlimited.
	RequestsPerSec int
	// Logger receives request and retry events. The secret key is never
	// logged.
	Logger *logrus.Logger
	// HTTPClient overrides the pooled default transport.
	HTTPClient *http.Client
	// Signing is applied by Fetch to the requests it builds.
	Signing sigv4.Options
}

// Client signs and sends requests. Safe for sequential use from one owner;
// the signer's key cache is not synchronized.
type Client struct {
	signer  *sigv4.Signer
	retry   *retryablehttp.Client
	limiter ratelimit.Limiter
	logger  *logrus.Logger
	signing sigv4.Options
}

// New wraps signer in a retrying client per opts.
func New(signer *sigv4.Signer, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	retries := opts.Retries
	switch {
	case retries == 0:
		retries = defaultRetries
	case retries < 0:
		retries = 0
	}
	waitMin := opts.InitialRetryWait
	if waitMin <= 0 {
		waitMin = defaultRetryWait
	}
	waitMax := opts.MaxRetryWait
	if waitMax <= 0 {
		waitMax = maxRetryWait
	}
	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSec > 0 {
		limiter = ratelimit.New(opts.RequestsPerSec)
	}

	c := &Client{
		signer:  signer,
		limiter: limiter,
		logger:  logger,
		signing: opts.Signing,
	}
	c.retry = &retryablehttp.Client{
		HTTPClient:   httpClient,
		Logger:       leveledLogger{logger},
		RetryWaitMin: waitMin,
		RetryWaitMax: waitMax,
		RetryMax:     retries,
		CheckRetry:   checkRetry,
		Backoff:      fullJitterBackoff,
		PrepareRetry: c.prepareRetry,
		RequestLogHook: func(_ retryablehttp.Logger, r *http.Request, attempt int) {
			logger.WithFields(logrus.Fields{
				"method":  r.Method,
				"url":     r.URL.Redacted(),
				"attempt": attempt,
			}).Debug("sending request")
		},
		ResponseLogHook: func(_ retryablehttp.Logger, resp *http.Response) {
			logger.WithFields(logrus.Fields{
				"url":    resp.Request.URL.Redacted(),
				"status": resp.StatusCode,
			}).Debug("received response")
		},
	}
	return c
}

// Do signs req and sends it, retrying per the client's policy. The response
// body is the caller's to close.
func (c *Client) Do(ctx context.Context, req *sigv4.Request) (*http.Response, error) {
	c.limiter.Take()
	signed, err := c.signer.Sign(req)
	if err != nil {
		return nil, err
	}
	ctx = contextWithSigningState(ctx, signingState{opts: req.Options, body: req.Body})
	rreq, err := retryablehttp.NewRequestWithContext(ctx, signed.Method, signed.URL.String(), signed.Body)
	if err != nil {
		return nil, fmt.Errorf("build request: %s", err)
	}
	rreq.Header = signed.Header
	resp, err := c.retry.Do(rreq)
	if err != nil {
		return nil, fmt.Errorf("do request: %s", err)
	}
	return resp, nil
}

// Fetch signs and sends a request built from its arguments with the client's
// signing options.
func (c *Client) Fetch(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	return c.Do(ctx, &sigv4.Request{
		Method:  method,
		URL:     rawURL,
		Body:    body,
		Options: c.signing,
	})
}

// checkRetry retries on a network error, HTTP 429, or any 5xx status.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// fullJitterBackoff sleeps a random fraction of min*2^attempt, capped at
// max.
func fullJitterBackoff(min, max time.Duration, attemptNum int, _ *http.Response) time.Duration {
	backoff := float64(min) * math.Pow(2, float64(attemptNum))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	return time.Duration(rand.Float64() * backoff)
}

type signingStateKey struct{}

// signingState carries what prepareRetry needs to rebuild the signature:
// the signing options and the original body bytes, since the request body
// reader is already drained by the failed attempt.
type signingState struct {
	opts sigv4.Options
	body []byte
}

func contextWithSigningState(ctx context.Context, st signingState) context.Context {
	return context.WithValue(ctx, signingStateKey{}, st)
}

func signingStateFromContext(ctx context.Context) (signingState, bool) {
	st, ok := ctx.Value(signingStateKey{}).(signingState)
	return st, ok
}

// prepareRetry strips the previous attempt's signature artifacts and signs
// again before the next attempt goes out. Query mode drops the appended
// X-Amz-Signature and X-Amz-Security-Token parameters so they cannot leak
// into the new canonical query; everything else is replaced in place by the
// signer.
func (c *Client) prepareRetry(req *http.Request) error {
	st, ok := signingStateFromContext(req.Context())
	if !ok {
		return nil
	}
	req.Header.Del("Authorization")
	if st.opts.SignQuery {
		q := req.URL.Query()
		q.Del("X-Amz-Signature")
		q.Del("X-Amz-Security-Token")
		req.URL.RawQuery = q.Encode()
	}
	if len(st.body) > 0 {
		req.Body = io.NopCloser(bytes.NewReader(st.body))
	} else {
		req.Body = nil
	}
	if err := c.signer.SignHTTP(req, st.opts); err != nil {
		return fmt.Errorf("re-sign retry: %s", err)
	}
	return nil
}

// leveledLogger adapts logrus to retryablehttp's LeveledLogger.
type leveledLogger struct {
	l *logrus.Logger
}

func (a leveledLogger) fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		f[key] = keysAndValues[i+1]
	}
	return f
}

func (a leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	a.l.WithFields(a.fields(keysAndValues)).Error(msg)
}

func (a leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	a.l.WithFields(a.fields(keysAndValues)).Warn(msg)
}

func (a leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	a.l.WithFields(a.fields(keysAndValues)).Info(msg)
}

func (a leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	a.l.WithFields(a.fields(keysAndValues)).Debug(msg)
}
