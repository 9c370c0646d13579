package runtime

import (
	"errors"
	"math"
	"time"
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RetryPolicy decides what happens to a failed job.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 30 * time.Second}
}

// Backoff is 2^attempts x BaseDelay.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 16 {
		attempts = 16
	}
	return time.Duration(math.Pow(2, float64(attempts))) * p.BaseDelay
}

// Next returns when to retry after the given attempt count, or false when the
// job should fail for good.
func (p RetryPolicy) Next(attempts, maxAttempts int, err error, now time.Time) (time.Time, bool) {
	max := maxAttempts
	if max <= 0 {
		max = p.MaxAttempts
	}
	if IsPermanent(err) || attempts >= max {
		return time.Time{}, false
	}
	return now.Add(p.Backoff(attempts)), true
}
