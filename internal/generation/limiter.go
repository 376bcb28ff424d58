package generation

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"firassist/internal/domain"
)

// RateLimited spaces calls to a Completer so a process stays inside the
// provider's request quota.
type RateLimited struct {
	next    domain.Completer
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter allowing requestsPerMinute calls
// with the given burst. requestsPerMinute <= 0 returns next unchanged.
func NewRateLimited(next domain.Completer, requestsPerMinute, burst int) domain.Completer {
	if requestsPerMinute <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst),
	}
}

func (r *RateLimited) Name() string { return r.next.Name() }

// Complete waits for a token, then delegates.
func (r *RateLimited) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		kind, ok := ContextKind(ctx.Err())
		if !ok {
			// Wait fails early when the deadline cannot be met.
			kind = KindTimeout
		}
		return "", &Error{Kind: kind, Provider: r.next.Name(), Err: err}
	}
	return r.next.Complete(ctx, req)
}
