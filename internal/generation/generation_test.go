package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firassist/internal/domain"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("analysis pass: %w", &Error{Kind: KindNetwork, Provider: "openai", Err: cause})

	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrAuth)

	ge, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, ge.Kind)
	assert.True(t, ge.Retryable())
	assert.Contains(t, err.Error(), "openai completion failed (network)")
}

func TestError_Retryable(t *testing.T) {
	for kind, want := range map[Kind]bool{
		KindNetwork:   true,
		KindRateLimit: true,
		KindServer:    true,
		KindAuth:      false,
		KindRejected:  false,
		KindMalformed: false,
		KindTimeout:   false,
		KindCanceled:  false,
	} {
		assert.Equal(t, want, (&Error{Kind: kind}).Retryable(), kind)
	}
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuth, KindForStatus(http.StatusUnauthorized))
	assert.Equal(t, KindAuth, KindForStatus(http.StatusForbidden))
	assert.Equal(t, KindRateLimit, KindForStatus(http.StatusTooManyRequests))
	assert.Equal(t, KindServer, KindForStatus(http.StatusBadGateway))
	assert.Equal(t, KindTimeout, KindForStatus(http.StatusGatewayTimeout))
	assert.Equal(t, KindRejected, KindForStatus(http.StatusBadRequest))
}

func TestContextKind(t *testing.T) {
	k, ok := ContextKind(context.DeadlineExceeded)
	assert.True(t, ok)
	assert.Equal(t, KindTimeout, k)

	k, ok = ContextKind(fmt.Errorf("wrapped: %w", context.Canceled))
	assert.True(t, ok)
	assert.Equal(t, KindCanceled, k)

	_, ok = ContextKind(errors.New("other"))
	assert.False(t, ok)
}

type countingCompleter struct{ calls atomic.Int32 }

func (c *countingCompleter) Name() string { return "fake" }

func (c *countingCompleter) Complete(context.Context, domain.GenerationRequest) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func TestNewRateLimited_DisabledReturnsNext(t *testing.T) {
	next := &countingCompleter{}
	assert.Same(t, domain.Completer(next), NewRateLimited(next, 0, 0))
}

func TestRateLimited_Delegates(t *testing.T) {
	next := &countingCompleter{}
	c := NewRateLimited(next, 600, 2)

	out, err := c.Complete(context.Background(), domain.GenerationRequest{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "fake", c.Name())
	assert.EqualValues(t, 1, next.calls.Load())
}

func TestRateLimited_CanceledWhileWaiting(t *testing.T) {
	next := &countingCompleter{}
	c := NewRateLimited(next, 1, 1)

	_, err := c.Complete(context.Background(), domain.GenerationRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, domain.GenerationRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.EqualValues(t, 1, next.calls.Load())
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, BackoffDelay(200*time.Millisecond, 0))
	assert.Equal(t, 800*time.Millisecond, BackoffDelay(200*time.Millisecond, 2))
	assert.Equal(t, 5*time.Second, BackoffDelay(200*time.Millisecond, 10))
}

func TestRetryPolicy_Do(t *testing.T) {
	server := &Error{Kind: KindServer, Provider: "p", StatusCode: 503}
	auth := &Error{Kind: KindAuth, Provider: "p", StatusCode: 401}

	tests := []struct {
		name      string
		retries   int
		failures  []*Error
		wantCalls int
		wantErr   error
	}{
		{"first try", 2, nil, 1, nil},
		{"recovers", 2, []*Error{server}, 2, nil},
		{"exhausted", 2, []*Error{server, server, server}, 3, ErrServer},
		{"not retryable", 2, []*Error{auth}, 1, ErrAuth},
		{"no retries", 0, []*Error{server}, 1, ErrServer},
		{"negative retries", -1, []*Error{server}, 1, ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			p := RetryPolicy{MaxRetries: tt.retries, Backoff: time.Millisecond}
			out, err := p.Do(context.Background(), "p", func(context.Context) (string, time.Duration, *Error) {
				calls++
				if calls <= len(tt.failures) {
					return "", 0, tt.failures[calls-1]
				}
				return "done", 0, nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, out)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "done", out)
		})
	}
}

func TestRetryPolicy_CanceledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxRetries: 3}
	_, err := p.Do(ctx, "p", func(context.Context) (string, time.Duration, *Error) {
		cancel()
		return "", time.Minute, &Error{Kind: KindRateLimit, Provider: "p", StatusCode: 429}
	})
	assert.ErrorIs(t, err, ErrCanceled)
}
