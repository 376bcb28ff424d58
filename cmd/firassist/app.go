package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"firassist/internal/config"
	"firassist/internal/corpus"
	"firassist/internal/domain"
	"firassist/internal/embedding/tfidf"
	"firassist/internal/generation"
	"firassist/internal/generation/gemini"
	"firassist/internal/generation/openai"
	"firassist/internal/logging"
	"firassist/internal/matcher"
	"firassist/internal/prompt"
	"firassist/internal/service"
)

// app holds the assembled components for one process.
type app struct {
	cfg     *config.AppConfig
	logger  *zap.Logger
	matcher *matcher.Matcher
	svc     *service.FIRService
	closers []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
	_ = a.logger.Sync()
}

func loadConfig(path string) (*config.AppConfig, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	var (
		cfg *config.AppConfig
		err error
	)
	if path == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildMatcher loads the corpus and fits the vector space.
func buildMatcher(ctx context.Context, cfg *config.AppConfig) (*matcher.Matcher, error) {
	cc := corpus.Config{
		Source:            cfg.Corpus.Source,
		Path:              cfg.Corpus.Path,
		SectionColumn:     cfg.Corpus.SectionColumn,
		DescriptionColumn: cfg.Corpus.DescriptionColumn,
	}
	if s := cfg.Corpus.SQL; s != nil {
		cc.SQL = corpus.SQLConfig{Driver: s.Driver, DSN: s.DSN, Table: s.Table, OrderBy: s.OrderBy}
	}
	entries, err := corpus.Load(ctx, cc)
	if err != nil {
		return nil, err
	}
	var opts []tfidf.Option
	if cfg.Matcher.StopWords == "english" {
		opts = append(opts, tfidf.WithStopWords(tfidf.EnglishStopWords()))
	}
	return matcher.New(entries, tfidf.New(opts...))
}

func buildCompleter(ctx context.Context, cfg config.GenerationConfig, logger *zap.Logger) (domain.Completer, func() error, error) {
	var (
		c       domain.Completer
		closeFn func() error
	)
	switch cfg.Provider {
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Timeout:    cfg.Timeout(),
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("openai client init failed: %w", err)
		}
		c = client
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKeyEnv:  cfg.Gemini.APIKeyEnv,
			Model:      cfg.Gemini.Model,
			Timeout:    cfg.Timeout(),
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("gemini client init failed: %w", err)
		}
		c, closeFn = client, client.Close
	default:
		return nil, nil, fmt.Errorf("unknown generation provider: %s", cfg.Provider)
	}
	return generation.NewRateLimited(c, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst), closeFn, nil
}

// buildApp assembles the full pipeline. A quiet app logs nothing, for
// commands that own the terminal.
func buildApp(ctx context.Context, cfgPath string, quiet bool) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	if !quiet {
		if logger, err = logging.New(cfg.Log); err != nil {
			return nil, err
		}
	}
	a := &app{cfg: cfg, logger: logger}

	m, err := buildMatcher(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	a.matcher = m
	logger.Info("corpus loaded",
		zap.String("source", cfg.Corpus.Source),
		zap.Int("sections", m.Len()))

	completer, closeFn, err := buildCompleter(ctx, cfg.Generation, logger)
	if err != nil {
		return nil, err
	}
	if closeFn != nil {
		a.closers = append(a.closers, closeFn)
	}

	g := cfg.Generation
	builder := prompt.NewBuilder(prompt.Settings{
		SystemInstruction: g.SystemInstruction,
		Temperature:       g.Temperature,
		MaxOutputTokens:   g.MaxOutputTokens,
	})
	// Both backends give each attempt the per-call timeout; the whole call may span every retry.
	callTimeout := g.Timeout() * time.Duration(g.MaxRetries+1)
	a.svc = service.NewFIRService(m, completer, builder,
		service.WithTopK(cfg.Matcher.TopK),
		service.WithCallTimeout(callTimeout),
		service.WithLogger(logger))
	logger.Info("generation configured",
		zap.String("provider", completer.Name()),
		zap.Int("top_k", a.svc.TopK()),
		zap.Duration("call_timeout", callTimeout))
	return a, nil
}
