package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds retry configuration parameters
type Config struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int
	// InitialDelay is the initial delay before the first retry
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// Multiplier is the factor by which the delay increases each retry
	Multiplier float64
	// Jitter adds randomness to delay to prevent thundering herd
	Jitter bool
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// newBackOff builds the exponential policy described by the config
func (c Config) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.InitialDelay
	bo.MaxInterval = c.MaxDelay
	bo.Multiplier = c.Multiplier
	bo.MaxElapsedTime = 0
	if c.Jitter {
		bo.RandomizationFactor = 0.25
	} else {
		bo.RandomizationFactor = 0
	}
	bo.Reset()
	return bo
}

// Policy returns the backoff policy for this config bound to ctx
func (c Config) Policy(ctx context.Context) backoff.BackOffContext {
	return backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(max(c.MaxRetries, 0))), ctx)
}

// Do executes a function with retry logic
func Do(ctx context.Context, config Config, fn func() error) error {
	var lastErr error

	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetriable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, config.Policy(ctx))

	if err == nil {
		return nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("retry cancelled: %w", ctx.Err())
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// DoWithResponse executes an HTTP request with retry logic and respects Retry-After headers.
// 5xx and 429 responses are retried; once retries run out the last such
// response is returned with a nil error so the caller can read its status.
func DoWithResponse(ctx context.Context, config Config, fn func() (*http.Response, error)) (*http.Response, error) {
	policy := config.Policy(ctx)
	policy.Reset()
	for {
		resp, err := fn()
		if err != nil {
			if !IsRetriable(err) {
				return nil, err
			}
		} else if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			if ctx.Err() != nil {
				closeBody(resp)
				return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
			}
			if err != nil {
				return nil, fmt.Errorf("max retries exceeded: %w", err)
			}
			return resp, nil
		}
		if resp != nil {
			if retryAfter := parseRetryAfter(resp.Header.Get("Retry-After")); retryAfter > 0 {
				delay = retryAfter
			}
			closeBody(resp)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

// IsRetriable determines if an error is retriable
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}

	var retriable interface{ Retriable() bool }
	if errors.As(err, &retriable) {
		return retriable.Retriable()
	}

	errStr := err.Error()
	retriableMessages := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"no such host",
		"TLS handshake timeout",
	}
	for _, msg := range retriableMessages {
		if strings.Contains(errStr, msg) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header
// It can be either a number of seconds or an HTTP date
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		return time.Until(t)
	}
	return 0
}
