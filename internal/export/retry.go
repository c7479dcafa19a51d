package export

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds a poll-until-ready loop: at most MaxAttempts tries with a
// fixed Delay between them.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPrintRetry gives a freshly opened print surface about four seconds.
var DefaultPrintRetry = RetryPolicy{MaxAttempts: 8, Delay: 500 * time.Millisecond}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// sleepFunc waits d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// permanentError ends a RetryPolicy loop without further attempts.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// Do calls fn until it succeeds or attempts run out. It returns the number of
// attempts made and the last error. An error wrapped with permanent stops the
// loop at once.
func (p RetryPolicy) Do(ctx context.Context, sleep sleepFunc, fn func(attempt int) error) (int, error) {
	var err error
	limit := p.attempts()
	for attempt := 1; attempt <= limit; attempt++ {
		if err = fn(attempt); err == nil {
			return attempt, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return attempt, perm.err
		}
		if attempt == limit {
			break
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			return attempt, serr
		}
	}
	return limit, err
}
