package api

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
)

// NetworkError is a transport failure: connection refused, timeout or open breaker
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retriable marks transport failures as worth another attempt
func (e *NetworkError) Retriable() bool { return true }

// APIError is a non-2xx answer carrying the backend's message
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Retriable reports whether the backend failed rather than rejected the request
func (e *APIError) Retriable() bool { return e.StatusCode >= 500 }

// AuthExpiredError means the session could not be renewed and tokens were cleared
type AuthExpiredError struct {
	Err error
}

func (e *AuthExpiredError) Error() string {
	if e.Err == nil {
		return "session expired"
	}
	return fmt.Sprintf("session expired: %v", e.Err)
}

func (e *AuthExpiredError) Unwrap() error { return e.Err }

// Retriable is false: only a fresh login helps
func (e *AuthExpiredError) Retriable() bool { return false }

// IsCircuitOpen reports whether err came from the open circuit breaker
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
