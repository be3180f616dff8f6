// Package retry provides delay sequences and a retry loop.
//
// Redstone uses it to pace advisory lock acquisition, but it is not specific
// to locks: any operation that wants bounded, paced attempts can use Do.
package retry

import (
	"context"
	"errors"

	"github.com/ridge/redstone/tlog"
	"go.uber.org/zap"
	"time"
)

// DelayFn is a function called repeatedly to produce the delays between
// attempts. A single DelayFn value represents a single sequence of delays.
//
// Each call returns the delay before the next attempt, and whether an
// attempt is desired at all. After a false result the caller must stop and
// not call the function again. The first call must return true.
//
// The first delay is used before the very first attempt, so in most cases
// the first call should return (0, true).
type DelayFn func() (delay time.Duration, ok bool)

// Config produces delay sequences. Implementations are normally stateless;
// each call to Delays returns an independent sequence.
type Config interface {
	Delays() DelayFn
}

// FixedConfig defines fixed delays between attempts.
type FixedConfig struct {
	// TryAfter is the delay before the first attempt
	TryAfter time.Duration

	// RetryAfter is the delay before each subsequent attempt
	RetryAfter time.Duration

	// MaxAttempts is the maximum number of attempts taken; 0 = unlimited
	MaxAttempts int
}

// Delays implements Config.
func (c FixedConfig) Delays() DelayFn {
	attempts := 0
	return func() (time.Duration, bool) {
		attempts++
		switch {
		case attempts == 1:
			return c.TryAfter, true
		case c.MaxAttempts != 0 && attempts > c.MaxAttempts:
			return 0, false
		default:
			return c.RetryAfter, true
		}
	}
}

// ErrRetriable marks an error whose operation should be retried.
type ErrRetriable struct {
	err error
}

func (r ErrRetriable) Error() string {
	return r.err.Error()
}

// Unwrap returns the next error in the error chain.
func (r ErrRetriable) Unwrap() error {
	return r.err
}

// Retriable wraps an error to tell Do that it should keep trying.
// Returns nil if err is nil.
func Retriable(err error) error {
	if err == nil {
		return nil
	}
	return ErrRetriable{err: err}
}

// Do executes the given function, retrying as long as it returns errors
// wrapped with Retriable. The Config paces the attempts. Success or an
// unwrapped error is returned immediately.
func Do(ctx context.Context, c Config, f func() error) error {
	startedAt := time.Now()
	delays := c.Delays()
	var lastMessage string
	var r ErrRetriable
	for i := 0; ; i++ {
		logger := tlog.Get(ctx).With(zap.Int("attempts", i+1))

		delay, ok := delays()
		if !ok {
			if i == 0 {
				panic("ok is false on first attempt")
			}
			logger.Debug("Retry failed after maximum number of attempts",
				zap.Error(r.err), zap.Duration("duration", time.Since(startedAt)))
			return r.err
		}

		if err := Sleep(ctx, delay); err != nil {
			return err
		}

		if err := f(); !errors.As(err, &r) {
			return err
		}
		if errors.Is(r.err, ctx.Err()) {
			return r.err // f wants to retry but the context is closing
		}

		newMessage := r.err.Error()
		if lastMessage != newMessage {
			logger.Debug("Will retry", zap.Error(r.err))
			lastMessage = newMessage
		}
	}
}

// Do1 is a single return value version of Do.
func Do1[T any](ctx context.Context, c Config, f func() (T, error)) (T, error) {
	var t T
	err := Do(ctx, c, func() error {
		var err error
		t, err = f()
		return err
	})
	return t, err
}
