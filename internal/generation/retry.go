package generation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// RetryPolicy re-runs a completion attempt while it fails with a retryable
// Error. MaxRetries counts the extra attempts after the first.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	Logger     *zap.Logger
}

// Attempt performs one call. wait is a server-requested delay before the next
// attempt; zero falls back to exponential backoff.
type Attempt func(ctx context.Context) (content string, wait time.Duration, err *Error)

// Do runs attempt until it succeeds, fails with a non-retryable error or the
// retries are used up. The last error is returned as is.
func (p RetryPolicy) Do(ctx context.Context, provider string, attempt Attempt) (string, error) {
	retries := max(p.MaxRetries, 0)
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr *Error
	for i := 0; i <= retries; i++ {
		content, wait, gerr := attempt(ctx)
		if gerr == nil {
			return content, nil
		}
		lastErr = gerr
		if !gerr.Retryable() || i == retries {
			break
		}
		if wait == 0 {
			wait = BackoffDelay(backoff, i)
		}
		logger.Warn("completion failed, retrying",
			zap.String("provider", provider),
			zap.String("kind", string(gerr.Kind)),
			zap.Int("status", gerr.StatusCode),
			zap.Int("attempt", i+1),
			zap.Duration("wait", wait))
		if err := sleep(ctx, wait); err != nil {
			kind, _ := ContextKind(err)
			return "", &Error{Kind: kind, Provider: provider, Err: err}
		}
	}
	return "", lastErr
}

// BackoffDelay is base doubled per attempt, capped at 5s.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base << attempt
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
