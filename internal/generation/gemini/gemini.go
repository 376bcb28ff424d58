// Package gemini is a Completer backed by the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"firassist/internal/domain"
	"firassist/internal/generation"
)

const DefaultModel = "gemini-1.5-flash"

// Config configures the Gemini backend. The API key is read from the
// environment variable named by APIKeyEnv.
type Config struct {
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	Logger     *zap.Logger
	// Options are appended after the API key option.
	Options []option.ClientOption
}

// Client implements domain.Completer on top of genai.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	retry   generation.RetryPolicy
	// generate performs a single model call.
	generate func(ctx context.Context, req domain.GenerationRequest) (*genai.GenerateContentResponse, error)
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	opts := append([]option.ClientOption{option.WithAPIKey(key)}, cfg.Options...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	c := &Client{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		retry:   generation.RetryPolicy{MaxRetries: cfg.MaxRetries, Backoff: cfg.Backoff, Logger: cfg.Logger},
	}
	c.generate = c.generateContent
	return c, nil
}

// Name returns the identifier of this backend.
func (c *Client) Name() string { return "gemini" }

// Close releases the underlying connection.
func (c *Client) Close() error { return c.client.Close() }

// Complete sends req to the configured model and returns the text of the
// first candidate. Transport failures, quota and server errors are retried
// under the same policy as the OpenAI-compatible backend; each attempt gets
// its own timeout.
func (c *Client) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	return c.retry.Do(ctx, c.Name(), func(ctx context.Context) (string, time.Duration, *generation.Error) {
		return c.attempt(ctx, req)
	})
}

func (c *Client) attempt(ctx context.Context, req domain.GenerationRequest) (string, time.Duration, *generation.Error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.generate(ctx, req)
	if err != nil {
		return "", 0, c.classify(ctx, err)
	}
	text, err := firstCandidateText(resp)
	if err != nil {
		return "", 0, &generation.Error{Kind: generation.KindMalformed, Provider: c.Name(), Err: err}
	}
	return text, 0, nil
}

func (c *Client) generateContent(ctx context.Context, req domain.GenerationRequest) (*genai.GenerateContentResponse, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	}
	return model.GenerateContent(ctx, genai.Text(req.UserPrompt))
}

func firstCandidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates returned")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("candidate has no content (finish reason %v)", cand.FinishReason)
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("empty completion")
	}
	return b.String(), nil
}

func (c *Client) classify(ctx context.Context, err error) *generation.Error {
	return classify(c.Name(), ctx.Err(), err)
}

func classify(provider string, ctxErr, err error) *generation.Error {
	if kind, ok := generation.ContextKind(ctxErr); ok {
		return &generation.Error{Kind: kind, Provider: provider, Err: err}
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &generation.Error{Kind: generation.KindRejected, Provider: provider, Err: err}
	}
	if code := statusCode(err); code != 0 {
		return &generation.Error{Kind: generation.KindForStatus(code), Provider: provider, StatusCode: code, Err: err}
	}
	return &generation.Error{Kind: generation.KindNetwork, Provider: provider, Err: err}
}

// statusCode digs an HTTP status out of googleapi and gax errors.
func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return coded.HTTPCode()
	}
	return 0
}
