package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"firassist/internal/domain"
	"firassist/internal/generation"
	"firassist/internal/prompt"
)

const DefaultTopK = 5

// FIRService composes the matcher with the analysis and FIR generation passes.
// It holds no per-request state and is safe for concurrent use.
type FIRService struct {
	matcher     domain.Matcher
	completer   domain.Completer
	prompts     *prompt.Builder
	topK        int
	callTimeout time.Duration
	logger      *zap.Logger
	newID       func() string
	now         func() time.Time
}

// Option configures a FIRService.
type Option func(*FIRService)

// WithTopK sets the number of sections ranked when the caller passes k == 0.
func WithTopK(k int) Option {
	return func(s *FIRService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithCallTimeout bounds each completion call. Zero leaves only the caller's deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(s *FIRService) { s.callTimeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *FIRService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewFIRService wires the pipeline. A nil builder uses prompt defaults.
func NewFIRService(m domain.Matcher, c domain.Completer, prompts *prompt.Builder, opts ...Option) *FIRService {
	if prompts == nil {
		prompts = prompt.NewBuilder(prompt.DefaultSettings())
	}
	s := &FIRService{
		matcher:   m,
		completer: c,
		prompts:   prompts,
		topK:      DefaultTopK,
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SectionCount returns the size of the loaded corpus.
func (s *FIRService) SectionCount() int { return s.matcher.Len() }

// TopK returns the default number of ranked sections, capped at the corpus size.
func (s *FIRService) TopK() int {
	if n := s.matcher.Len(); s.topK > n {
		return n
	}
	return s.topK
}

// Rank returns the k best matching sections; k == 0 uses the default.
// A negative k is rejected by the matcher.
func (s *FIRService) Rank(query string, k int) (domain.QueryResult, error) {
	if k == 0 {
		k = s.TopK()
	}
	return s.matcher.Rank(query, k)
}

// Analyze ranks the description and asks the model for a legal analysis of it.
func (s *FIRService) Analyze(ctx context.Context, description string) (domain.QueryResult, string, error) {
	if strings.TrimSpace(description) == "" {
		return nil, "", domain.ErrEmptyDescription
	}
	matches, err := s.Rank(description, 0)
	if err != nil {
		return nil, "", err
	}
	analysis, err := s.analyze(ctx, description, matches)
	if err != nil {
		return nil, "", err
	}
	return matches, analysis, nil
}

// BuildFIR asks the model for a structured FIR. Incident values are used as given.
func (s *FIRService) BuildFIR(ctx context.Context, description string, matches domain.QueryResult, incident domain.IncidentDetails) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", domain.ErrEmptyDescription
	}
	req, err := s.prompts.FIR(description, matches, incident)
	if err != nil {
		return "", fmt.Errorf("fir prompt: %w", err)
	}
	start := time.Now()
	out, err := s.complete(ctx, req)
	if err != nil {
		s.logger.Warn("fir pass failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", fmt.Errorf("fir pass: %w", err)
	}
	s.logger.Info("fir pass complete",
		zap.Int("sections", len(matches)),
		zap.Int("chars", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// Draft runs rank, analysis and FIR structuring in sequence. The first failing
// stage aborts the run.
func (s *FIRService) Draft(ctx context.Context, description string, incident domain.IncidentDetails) (*domain.Draft, error) {
	if strings.TrimSpace(description) == "" {
		return nil, domain.ErrEmptyDescription
	}
	id := s.newID()
	log := s.logger.With(zap.String("draft_id", id))

	matches, err := s.Rank(description, 0)
	if err != nil {
		return nil, err
	}
	log.Debug("sections ranked", zap.Strings("labels", matches.Labels()))

	analysis, err := s.analyze(ctx, description, matches)
	if err != nil {
		log.Warn("draft aborted", zap.String("stage", "analysis"), zap.Error(err))
		return nil, err
	}
	fir, err := s.BuildFIR(ctx, description, matches, incident)
	if err != nil {
		log.Warn("draft aborted", zap.String("stage", "fir"), zap.Error(err))
		return nil, err
	}
	log.Info("draft complete", zap.Int("top_k", len(matches)))
	return &domain.Draft{
		ID:          id,
		Description: description,
		Incident:    incident,
		Sections:    matches,
		Analysis:    analysis,
		FIR:         fir,
		CreatedAt:   s.now().UTC(),
	}, nil
}

func (s *FIRService) analyze(ctx context.Context, description string, matches domain.QueryResult) (string, error) {
	req, err := s.prompts.Analysis(description, matches)
	if err != nil {
		return "", fmt.Errorf("analysis prompt: %w", err)
	}
	start := time.Now()
	out, err := s.complete(ctx, req)
	if err != nil {
		s.logger.Warn("analysis pass failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", fmt.Errorf("analysis pass: %w", err)
	}
	s.logger.Info("analysis pass complete",
		zap.Strings("sections", matches.Labels()),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (s *FIRService) complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}
	out, err := s.completer.Complete(ctx, req)
	if err != nil {
		if _, ok := generation.AsError(err); ok {
			return "", err
		}
		kind, ok := generation.ContextKind(ctx.Err())
		if !ok {
			kind = generation.KindNetwork
		}
		return "", &generation.Error{Kind: kind, Provider: s.completer.Name(), Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return "", &generation.Error{Kind: generation.KindMalformed, Provider: s.completer.Name(), Err: errors.New("empty completion")}
	}
	return out, nil
}
