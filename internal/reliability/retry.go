// Package reliability classifies transient upstream failures and retries them
// with capped exponential backoff.
package reliability

import (
	"context"
	"errors"
	"time"
)

// IsRetryableStatus reports whether an upstream HTTP status is worth retrying.
func IsRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableServerError classifies realtime "error" events by type or code.
func IsRetryableServerError(errType, code string) bool {
	switch code {
	case "rate_limit_exceeded", "server_error", "session_expired":
		return true
	}
	switch errType {
	case "server_error", "rate_limit_error":
		return true
	default:
		return false
	}
}

// Backoff computes a deterministic capped backoff for attempt (0-based).
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

// Permanent wraps an error that must not be retried.
type Permanent struct{ Err error }

func (p Permanent) Error() string { return p.Err.Error() }
func (p Permanent) Unwrap() error { return p.Err }

// Policy bounds a retry loop.
type Policy struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts are
// exhausted, or ctx is done. The last error is returned unwrapped from
// Permanent.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	var err error
	for attempt := range attempts {
		if err = fn(ctx); err == nil {
			return nil
		}
		var perm Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		if attempt == attempts-1 {
			break
		}
		t := time.NewTimer(Backoff(attempt, p.Base, p.Cap))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}
