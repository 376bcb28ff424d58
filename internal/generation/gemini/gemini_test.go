package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"firassist/internal/domain"
	"firassist/internal/generation"
)

type httpCoded struct{ code int }

func (e httpCoded) Error() string { return fmt.Sprintf("http %d", e.code) }
func (e httpCoded) HTTPCode() int { return e.code }

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("FIRASSIST_GEMINI_TEST_KEY", "")
	_, err := NewClient(context.Background(), Config{APIKeyEnv: "FIRASSIST_GEMINI_TEST_KEY"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIRASSIST_GEMINI_TEST_KEY")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		ctxErr error
		err    error
		want   error
		status int
	}{
		{"deadline", context.DeadlineExceeded, errors.New("rpc"), generation.ErrTimeout, 0},
		{"canceled", context.Canceled, errors.New("rpc"), generation.ErrCanceled, 0},
		{"googleapi auth", nil, &googleapi.Error{Code: http.StatusForbidden}, generation.ErrAuth, http.StatusForbidden},
		{"googleapi quota", nil, &googleapi.Error{Code: http.StatusTooManyRequests}, generation.ErrRateLimited, http.StatusTooManyRequests},
		{"gax style", nil, fmt.Errorf("wrapped: %w", httpCoded{code: http.StatusServiceUnavailable}), generation.ErrServer, http.StatusServiceUnavailable},
		{"blocked", nil, &genai.BlockedError{}, generation.ErrRejected, 0},
		{"transport", nil, errors.New("dial tcp: no route to host"), generation.ErrNetwork, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("gemini", tt.ctxErr, tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, "gemini", got.Provider)
		})
	}
}

func TestFirstCandidateText(t *testing.T) {
	_, err := firstCandidateText(nil)
	assert.Error(t, err)

	_, err = firstCandidateText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = firstCandidateText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})
	assert.Error(t, err)

	text, err := firstCandidateText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("FIR "), genai.Text("draft")}}},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "FIR draft", text)
}

func reply(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(text)}}},
	}}
}

// scripted returns a client whose model calls fail with errs in order and
// then succeed.
func scripted(maxRetries int, errs ...error) (*Client, *int) {
	calls := 0
	c := &Client{
		model:   DefaultModel,
		timeout: time.Second,
		retry:   generation.RetryPolicy{MaxRetries: maxRetries, Backoff: time.Millisecond},
	}
	c.generate = func(context.Context, domain.GenerationRequest) (*genai.GenerateContentResponse, error) {
		calls++
		if calls <= len(errs) {
			return nil, errs[calls-1]
		}
		return reply("FIR draft"), nil
	}
	return c, &calls
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	c, calls := scripted(2, unavailable, unavailable, unavailable)

	_, err := c.Complete(context.Background(), domain.GenerationRequest{UserPrompt: "x"})
	assert.ErrorIs(t, err, generation.ErrServer)
	assert.Equal(t, 3, *calls)
}

func TestComplete_RetriesThenSucceeds(t *testing.T) {
	c, calls := scripted(2, &googleapi.Error{Code: http.StatusTooManyRequests})

	text, err := c.Complete(context.Background(), domain.GenerationRequest{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "FIR draft", text)
	assert.Equal(t, 2, *calls)
}

func TestComplete_AuthNotRetried(t *testing.T) {
	c, calls := scripted(2, &googleapi.Error{Code: http.StatusForbidden})

	_, err := c.Complete(context.Background(), domain.GenerationRequest{UserPrompt: "x"})
	assert.ErrorIs(t, err, generation.ErrAuth)
	assert.Equal(t, 1, *calls)
}

func TestComplete_ZeroRetries(t *testing.T) {
	c, calls := scripted(0, errors.New("connection reset"))

	_, err := c.Complete(context.Background(), domain.GenerationRequest{UserPrompt: "x"})
	assert.ErrorIs(t, err, generation.ErrNetwork)
	assert.Equal(t, 1, *calls)
}
