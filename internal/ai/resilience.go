package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// CallPolicy bounds every remote model call.
type CallPolicy struct {
	// Timeout applies to each attempt separately.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first failure.
	Retries int
	// Backoff is the wait before the first retry; it doubles per retry.
	Backoff time.Duration
	// RequestsPerMinute throttles calls; zero disables the limiter.
	RequestsPerMinute int
}

// DefaultCallPolicy allows one retry after a short backoff.
func DefaultCallPolicy() CallPolicy {
	return CallPolicy{
		Timeout: 60 * time.Second,
		Retries: 1,
		Backoff: 500 * time.Millisecond,
	}
}

// UsageRecorder receives token and breaker telemetry. *telemetry.Metrics implements it.
type UsageRecorder interface {
	RecordTokensUsed(tokens int64, model string)
	RecordCircuitBreakerState(service, state string)
}

// guard runs remote calls through a rate limiter, a per-attempt timeout,
// a circuit breaker and a bounded retry.
type guard struct {
	name    string
	policy  CallPolicy
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

func newGuard(name string, policy CallPolicy, logger *slog.Logger, usage UsageRecorder) *guard {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.Retries < 0 {
		policy.Retries = 0
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: upstreamHealthy,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if usage != nil {
				usage.RecordCircuitBreakerState(name, to.String())
			}
		},
	})

	var limiter *rate.Limiter
	if policy.RequestsPerMinute > 0 {
		// 90% of the quota, burst of a tenth
		rpm := policy.RequestsPerMinute
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), max(1, rpm/10))
	}

	return &guard{name: name, policy: policy, breaker: breaker, limiter: limiter, logger: logger}
}

// guarded runs fn under g, retrying retryable failures with exponential backoff.
func guarded[T any](ctx context.Context, g *guard, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	wait := g.policy.Backoff

	var lastErr error
	for attempt := 0; attempt <= g.policy.Retries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("retrying remote call", "service", g.name, "op", op, "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return zero, lastErr
			case <-time.After(wait):
			}
			wait *= 2
		}

		out, err := attemptOnce(ctx, g, fn)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return zero, lastErr
}

func attemptOnce[T any](ctx context.Context, g *guard, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, err
		}
	}

	callCtx := ctx
	if g.policy.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.policy.Timeout)
		defer cancel()
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		out, err := fn(callCtx)
		if err != nil && ctx.Err() != nil {
			return out, &abortedError{err: err}
		}
		return out, err
	})
	if err != nil {
		var aborted *abortedError
		if errors.As(err, &aborted) {
			return zero, aborted.err
		}
		return zero, err
	}
	out, _ := result.(T)
	return out, nil
}

// permanentError marks a failure that a retry cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// abortedError is a failure caused by the caller's context ending, not by
// the upstream.
type abortedError struct{ err error }

func (e *abortedError) Error() string { return e.err.Error() }
func (e *abortedError) Unwrap() error { return e.err }

// upstreamHealthy is the breaker's success test: permanent errors and calls
// abandoned by the caller count as successes.
func upstreamHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var p *permanentError
	var a *abortedError
	return errors.As(err, &p) || errors.As(err, &a)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var p *permanentError
	return !errors.As(err, &p)
}
