package lakefs

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = 200 * time.Millisecond

	// drainLimit caps how much of a discarded response body is read
	// before closing, so the connection can be reused.
	drainLimit = 1 << 20
)

// errServerStatus marks a response that completed with a 5xx status.
// It trips the circuit breaker but is unwrapped before the response
// is handed back to the HTTP client.
var errServerStatus = errors.New("lakefs: server error status")

// resilientTransport wraps a base RoundTripper with bounded retries
// and a circuit breaker. Transport failures and 5xx responses count
// against the breaker; 4xx responses pass through untouched.
type resilientTransport struct {
	base        http.RoundTripper
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	maxAttempts int
	baseBackoff time.Duration
}

func newResilientTransport(base http.RoundTripper) *resilientTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	settings := gobreaker.Settings{
		Name:        "lakefs",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &resilientTransport{
		base:        base,
		breaker:     gobreaker.NewCircuitBreaker[*http.Response](settings),
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}
}

var _ http.RoundTripper = (*resilientTransport)(nil)

func (t *resilientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		return t.attempt(req)
	})
	if err != nil {
		// A 5xx that survived all retries still reaches the caller as a
		// regular response; the breaker has already recorded the failure.
		if resp != nil && errors.Is(err, errServerStatus) {
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}

// attempt runs the request up to maxAttempts times. Only requests whose
// body can be replayed are retried. 502/503/504 are treated as transient;
// a 500 is returned immediately since the server may have partially
// applied the operation.
func (t *resilientTransport) attempt(req *http.Request) (*http.Response, error) {
	var lastErr error

	for i := 0; i < t.maxAttempts; i++ {
		if i > 0 {
			if !rewindable(req) {
				break
			}
			if err := rewind(req); err != nil {
				break
			}
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(t.backoff(i)):
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			lastErr = err
			continue
		}

		if transientStatus(resp.StatusCode) && i < t.maxAttempts-1 && rewindable(req) {
			drain(resp)
			lastErr = fmt.Errorf("lakefs: transient status %s", resp.Status)
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	}

	return nil, lastErr
}

// backoff returns an exponentially growing delay with jitter.
func (t *resilientTransport) backoff(attempt int) time.Duration {
	d := t.baseBackoff << (attempt - 1)
	jitter := time.Duration(rand.Float64() * float64(d) / 2)
	return d + jitter
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func rewindable(req *http.Request) bool {
	return req.Body == nil || req.GetBody != nil
}

func rewind(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}
