package resilience

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when a token bucket has no token left for a key.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrCircuitOpen is returned while a provider circuit rejects calls.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrBudgetExceeded is returned when an analysis goes over one of its caps.
	ErrBudgetExceeded = errors.New("analysis budget exceeded")
	// ErrDailyLimitExceeded is returned when a user runs out of analyses for the day.
	ErrDailyLimitExceeded = errors.New("daily analysis limit exceeded")
	// ErrMaxAttempts is returned when every retry attempt failed.
	ErrMaxAttempts = errors.New("max attempts exceeded")
)

// BudgetError tells which counter went over its cap.
type BudgetError struct {
	Resource string
	Used     int
	Cap      int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s: %s used %d of %d", ErrBudgetExceeded, e.Resource, e.Used, e.Cap)
}

func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }

// StatusError is returned by Fetch for upstream responses worth retrying.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// TransportError marks a failure below HTTP: dial, reset, TLS and similar.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }
