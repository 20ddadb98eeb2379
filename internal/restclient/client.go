package restclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"minutes/internal/metrics"
	"minutes/internal/services"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second
)

var retriableStatuses = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusConflict:            {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// RetriableStatus reports whether an HTTP status code should be retried.
func RetriableStatus(code int) bool {
	_, ok := retriableStatuses[code]
	return ok
}

// StatusError carries a non-2xx HTTP response through the retry loop so the
// policy can distinguish throttling from permanent rejections.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// NewStatusError builds a StatusError from a response, capturing the body and
// any Retry-After hint.
func NewStatusError(resp *http.Response, body []byte) *StatusError {
	retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: retryAfter,
	}
}

// Options bound the retry and pacing behavior of one Caller.
type Options struct {
	// MaxAttempts is the total request ceiling, including the first try.
	MaxAttempts int
	// BackoffBase is the delay before the second attempt; it doubles for
	// each further retry.
	BackoffBase time.Duration
	// BackoffCap bounds any single sleep when positive.
	BackoffCap time.Duration
	// RequestsPerMinute paces attempt starts when positive: consecutive
	// attempts begin at least 60/rpm seconds apart. The gate is shared by
	// every goroutine using the same Caller.
	RequestsPerMinute float64
	// RequestTimeout caps each individual attempt when positive.
	RequestTimeout time.Duration
}

// Caller runs request thunks under a shared retry and rate-limit policy.
type Caller struct {
	opts    Options
	limiter *rate.Limiter
	sleeper func(time.Duration)
}

// Option customizes a Caller.
type Option func(*Caller)

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Caller) {
		c.sleeper = sleeper
	}
}

// New constructs a Caller. Non-positive option values fall back to defaults;
// configuration validation rejects them before the daemon gets this far.
func New(opts Options, options ...Option) *Caller {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	caller := &Caller{opts: opts}
	if opts.RequestsPerMinute > 0 {
		caller.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerMinute/60.0), 1)
	}
	for _, opt := range options {
		opt(caller)
	}
	return caller
}

// Do invokes fn until it succeeds, a permanent error surfaces, or the attempt
// budget is spent. Every attempt start waits on the rate gate first. The delay
// after attempt k is BackoffBase doubled k-1 times, replaced by the server's
// Retry-After when present, and always capped by BackoffCap.
func Do[T any](ctx context.Context, c *Caller, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return zero, services.Wrap(services.ErrConfiguration, "", op, "rest caller not configured", nil)
	}
	start := time.Now()
	result, err := run(ctx, c, op, fn)
	metrics.RecordProviderRequest(op, metrics.StatusFor(err), time.Since(start).Seconds())
	return result, err
}

// run holds the retry loop; one run is one logical provider call.
func run[T any](ctx context.Context, c *Caller, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if err := c.gate(ctx); err != nil {
			return zero, err
		}

		var result T
		var err error
		if c.opts.RequestTimeout > 0 {
			attemptCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
			result, err = fn(attemptCtx)
			cancel()
		} else {
			result, err = fn(ctx)
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return zero, err
		}
		if attempt == c.opts.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%s: %d attempts exhausted: %w", op, c.opts.MaxAttempts, lastErr)
}

func (c *Caller) gate(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate gate: %w", err)
	}
	return nil
}

func (c *Caller) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if ctx.Err() != nil {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if !RetriableStatus(statusErr.StatusCode) {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return c.capDelay(statusErr.RetryAfter), true
		}
		return c.backoffDelay(attempt), true
	}

	if services.Retriable(err) {
		return c.backoffDelay(attempt), true
	}

	// The per-attempt deadline fired while the caller is still live.
	if errors.Is(err, context.DeadlineExceeded) {
		return c.backoffDelay(attempt), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return c.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.backoffDelay(attempt), true
	}

	return 0, false
}

// backoffDelay returns the exponential delay following a failed attempt:
// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
func (c *Caller) backoffDelay(attempt int) time.Duration {
	delay := c.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		if c.opts.BackoffCap > 0 && delay > c.opts.BackoffCap/2 {
			return c.opts.BackoffCap
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Caller) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.opts.BackoffCap > 0 && delay > c.opts.BackoffCap {
		return c.opts.BackoffCap
	}
	return delay
}

func (c *Caller) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
