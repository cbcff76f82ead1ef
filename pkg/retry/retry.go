package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config describes the retry behavior.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFactor   float64
	// OnRetry, when set, is called before sleeping after a failed attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do executes fn and retries with exponential backoff until it succeeds, the
// attempts are exhausted, fn returns a Permanent error or the context is
// cancelled.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.JitterFactor <= 0 {
		cfg.JitterFactor = 0.2
	}

	backoff := cfg.InitialBackoff
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = fn(); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		sleep := applyJitter(backoff, cfg.JitterFactor)
		if sleep > cfg.MaxBackoff {
			sleep = cfg.MaxBackoff
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, sleep)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}

		if backoff < cfg.MaxBackoff {
			backoff *= 2
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}
	return err
}

func applyJitter(duration time.Duration, factor float64) time.Duration {
	delta := int64(float64(duration) * factor)
	if delta <= 0 {
		return duration
	}
	return duration + time.Duration(rand.Int63n(2*delta)-delta)
}
