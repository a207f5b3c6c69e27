package fetch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy is a bounded retry policy with linearly increasing backoff.
// The delay before attempt n+1 is n*BaseDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy matches the provider-call retry budget used across the
// daily pipeline.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second}

// Do runs fn up to p.MaxAttempts times. The error from the final attempt is
// returned unchanged so callers can still match on typed provider errors.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			delay := time.Duration(i) * p.BaseDelay
			log.Warn().Str("op", op).Int("attempt", i+1).Dur("backoff", delay).
				Err(lastErr).Msg("Retrying after failure")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = fn(); lastErr == nil {
			if i > 0 {
				log.Info().Str("op", op).Int("attempt", i+1).Msg("Succeeded after retry")
			}
			return nil
		}
	}

	log.Error().Str("op", op).Int("attempts", attempts).Err(lastErr).Msg("Retry budget exhausted")
	return lastErr
}

// Retry is Policy.Do for operations that return a value.
func Retry[T any](ctx context.Context, p Policy, op string, fn func() (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, op, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
