// Package httpapi exposes the FIR pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"firassist/internal/domain"
	"firassist/internal/generation"
	"firassist/internal/matcher"
)

// FIRService is the pipeline the handlers drive.
type FIRService interface {
	SectionCount() int
	Rank(query string, k int) (domain.QueryResult, error)
	Analyze(ctx context.Context, description string) (domain.QueryResult, string, error)
	BuildFIR(ctx context.Context, description string, matches domain.QueryResult, incident domain.IncidentDetails) (string, error)
	Draft(ctx context.Context, description string, incident domain.IncidentDetails) (*domain.Draft, error)
}

// Handler handles HTTP requests for section ranking and FIR drafting
type Handler struct {
	svc    FIRService
	logger *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(svc FIRService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RankRequest is the body of POST /api/sections/rank.
type RankRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

// CaseRequest carries the case description. A speech transcript is used when
// the typed description is blank.
type CaseRequest struct {
	Description string `json:"description"`
	Transcript  string `json:"transcript"`
}

func (r CaseRequest) text() string {
	if strings.TrimSpace(r.Description) != "" {
		return r.Description
	}
	return r.Transcript
}

// FIRRequest is the body of POST /api/fir. Sections are ranked from the
// description when omitted.
type FIRRequest struct {
	CaseRequest
	Sections domain.QueryResult     `json:"sections"`
	Incident domain.IncidentDetails `json:"incident"`
}

// DraftRequest is the body of POST /api/drafts.
type DraftRequest struct {
	CaseRequest
	Incident domain.IncidentDetails `json:"incident"`
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sections": h.svc.SectionCount(),
	})
}

// RankSections handles POST /api/sections/rank
func (h *Handler) RankSections(c *gin.Context) {
	var req RankRequest
	if !bind(c, &req) {
		return
	}
	matches, err := h.svc.Rank(req.Query, req.K)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"sections": matches})
}

// Analyze handles POST /api/analysis
func (h *Handler) Analyze(c *gin.Context) {
	var req CaseRequest
	if !bind(c, &req) {
		return
	}
	matches, analysis, err := h.svc.Analyze(c.Request.Context(), req.text())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"sections": matches, "analysis": analysis})
}

// BuildFIR handles POST /api/fir
func (h *Handler) BuildFIR(c *gin.Context) {
	var req FIRRequest
	if !bind(c, &req) {
		return
	}
	description := req.text()
	if strings.TrimSpace(description) == "" {
		h.fail(c, domain.ErrEmptyDescription)
		return
	}
	matches := req.Sections
	if len(matches) == 0 {
		var err error
		if matches, err = h.svc.Rank(description, 0); err != nil {
			h.fail(c, err)
			return
		}
	}
	fir, err := h.svc.BuildFIR(c.Request.Context(), description, matches, req.Incident)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"sections": matches, "fir": fir})
}

// CreateDraft handles POST /api/drafts
func (h *Handler) CreateDraft(c *gin.Context) {
	var req DraftRequest
	if !bind(c, &req) {
		return
	}
	draft, err := h.svc.Draft(c.Request.Context(), req.text(), req.Incident)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, draft)
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err))
	}
	_ = c.Error(err)
	writeError(c, status, code, err.Error())
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// classify maps a pipeline error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyDescription):
		return http.StatusBadRequest, "EMPTY_DESCRIPTION"
	case errors.Is(err, matcher.ErrInvalidK), errors.Is(err, matcher.ErrKTooLarge):
		return http.StatusBadRequest, "INVALID_K"
	}
	if ge, ok := generation.AsError(err); ok {
		switch ge.Kind {
		case generation.KindRateLimit:
			return http.StatusTooManyRequests, "UPSTREAM_RATE_LIMITED"
		case generation.KindTimeout:
			return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"
		case generation.KindCanceled:
			return http.StatusServiceUnavailable, "REQUEST_CANCELED"
		default:
			return http.StatusBadGateway, "GENERATION_FAILED"
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}
