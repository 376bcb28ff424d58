package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"firassist/internal/domain"
	"firassist/internal/generation"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "mixtral-8x7b-32768"

	maxRetryAfter = 30 * time.Second
	maxErrorBody  = 4 << 10
)

// Client is an OpenAI-compatible chat-completions client.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	retry   generation.RetryPolicy
	logger  *zap.Logger
}

// Config configures the OpenAI-compatible chat-completions client.
// The API key is read from the environment variable named by APIKeyEnv.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates a new chat-completions client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GROQ_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: t}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = generation.DefaultBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  key,
		model:   cfg.Model,
		client:  hc,
		retry:   generation.RetryPolicy{MaxRetries: cfg.MaxRetries, Backoff: cfg.Backoff, Logger: logger},
		logger:  logger,
	}, nil
}

// Name returns the identifier of this backend.
func (c *Client) Name() string { return "openai" }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends req and returns the content of choice 0.
// Network failures, 429 and 5xx responses are retried with exponential
// backoff; other failures return immediately.
func (c *Client) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    req.Messages(),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
	})
	if err != nil {
		return "", c.fail(generation.KindRejected, 0, err)
	}
	url := c.baseURL + "/chat/completions"

	return c.retry.Do(ctx, c.Name(), func(ctx context.Context) (string, time.Duration, *generation.Error) {
		return c.do(ctx, url, body)
	})
}

// do performs one attempt. wait is the server-requested delay, if any.
func (c *Client) do(ctx context.Context, url string, body []byte) (string, time.Duration, *generation.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, c.fail(generation.KindRejected, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if kind, ok := generation.ContextKind(ctx.Err()); ok {
			return "", 0, c.fail(kind, 0, err)
		}
		var timeout interface{ Timeout() bool }
		if errors.As(err, &timeout) && timeout.Timeout() {
			return "", 0, c.fail(generation.KindTimeout, 0, err)
		}
		return "", 0, c.fail(generation.KindNetwork, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		gerr := c.fail(generation.KindForStatus(resp.StatusCode), resp.StatusCode, errors.New(errorMessage(resp.Status, msg)))
		return "", retryAfter(resp.Header.Get("Retry-After")), gerr
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if kind, ok := generation.ContextKind(ctx.Err()); ok {
			return "", 0, c.fail(kind, 0, err)
		}
		return "", 0, c.fail(generation.KindNetwork, resp.StatusCode, err)
	}
	var out chatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", 0, c.fail(generation.KindMalformed, resp.StatusCode, err)
	}
	if len(out.Choices) == 0 {
		return "", 0, c.fail(generation.KindMalformed, resp.StatusCode, errors.New("no choices returned"))
	}
	content := out.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", 0, c.fail(generation.KindMalformed, resp.StatusCode, errors.New("empty completion"))
	}
	if fr := out.Choices[0].FinishReason; fr != "" && fr != "stop" {
		c.logger.Warn("chat completion finished early", zap.String("finish_reason", fr))
	}
	return content, 0, nil
}

func (c *Client) fail(kind generation.Kind, status int, err error) *generation.Error {
	return &generation.Error{Kind: kind, Provider: c.Name(), StatusCode: status, Err: err}
}

func errorMessage(status string, body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		return status + ": " + er.Error.Message
	}
	return status
}

func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}
