package remote

import (
	"context"
)

// AuthRetryPolicy retries a request once after refreshing the remote
// session, when the first attempt fails the retry predicate. It models
// the retry-on-401 behavior explicitly so it can be tested apart from
// any transport.
type AuthRetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Retryable decides whether an attempt error warrants a refresh and
	// another attempt.
	Retryable func(error) bool
}

// DefaultAuthRetryPolicy is the pipeline contract: at most two attempts,
// the second one only after an authentication failure.
func DefaultAuthRetryPolicy(retryable func(error) bool) AuthRetryPolicy {
	return AuthRetryPolicy{MaxAttempts: 2, Retryable: retryable}
}

// Do runs attempt, and on a retryable error runs refresh followed by
// another attempt, up to MaxAttempts. A refresh failure is returned as-is
// and stops the sequence; the final attempt error is returned otherwise.
func (p AuthRetryPolicy) Do(ctx context.Context, attempt func(ctx context.Context) error, refresh func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = attempt(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) || i == attempts-1 {
			return err
		}
		if refreshErr := refresh(ctx); refreshErr != nil {
			return refreshErr
		}
	}
	return err
}
