package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/easygo-cv/cvforge/pkg/breaker"
	"github.com/easygo-cv/cvforge/pkg/gate"
	"github.com/easygo-cv/cvforge/pkg/genai"
	"github.com/easygo-cv/cvforge/pkg/models"
	"github.com/easygo-cv/cvforge/pkg/render"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "cvforge",
		"status":  "ok",
		"endpoints": []string{
			"GET /health",
			"GET /api/user/tokens",
			"GET /api/system/stats",
			"POST /api/cv/suggestions",
			"POST /api/cv/optimize",
			"POST /api/cv/generate",
			"POST /api/cv/generate-without-optimization",
			"POST /api/admin/credit",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"openai_configured": s.cfg.OpenAI.APIKey != "",
		"model":             s.cfg.OpenAI.Model,
		"breaker":           s.client.BreakerStatus(),
	})
}

func (s *Server) handleUserTokens(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeJSONError(w, http.StatusUnauthorized, "X-User-ID header required")
		return
	}
	writeJSON(w, http.StatusOK, s.gate.CallerStats(caller))
}

func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"usage":   s.gate.Stats(),
		"breaker": s.client.BreakerStatus(),
	})
}

type creditRequest struct {
	UserID string `json:"user_id"`
	Amount int    `json:"amount"`
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Amount <= 0 {
		writeJSONError(w, http.StatusBadRequest, "user_id and a positive amount are required")
		return
	}

	s.gate.Credit(req.UserID, req.Amount)
	slog.Info("tokens credited", "caller", req.UserID, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"user_id":          req.UserID,
		"tokens_remaining": s.gate.Balance(req.UserID),
	})
}

type suggestionsRequest struct {
	JobDescription  string `json:"job_description"`
	ExperienceYears int    `json:"experience_years"`
}

type suggestionsResponse struct {
	Success         bool                     `json:"success"`
	Suggestions     *genai.SuggestionsResult `json:"suggestions"`
	Cached          bool                     `json:"cached"`
	TokensRemaining int                      `json:"tokens_remaining"`
	ModelUsed       string                   `json:"model_used,omitempty"`
	TokensUsed      int                      `json:"tokens_used,omitempty"`
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeJSONError(w, http.StatusUnauthorized, "X-User-ID header required")
		return
	}

	var req suggestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.JobDescription == "" {
		writeJSONError(w, http.StatusBadRequest, "job_description is required")
		return
	}

	outcome, err := s.gate.Authorize(caller, OpSuggestions, CostSuggestions, req)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	if outcome.CacheHit {
		writeJSON(w, http.StatusOK, suggestionsResponse{
			Success:         true,
			Suggestions:     outcome.Cached.(*genai.SuggestionsResult),
			Cached:          true,
			TokensRemaining: s.gate.Balance(caller),
		})
		return
	}

	result, err := s.genai.Suggestions(r.Context(), req.JobDescription, req.ExperienceYears)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	s.gate.StoreResult(outcome.Authorization.Fingerprint, result)
	s.recordUsage(r.Context(), w, caller, OpSuggestions, result.ModelUsed, result.Usage)

	writeJSON(w, http.StatusOK, suggestionsResponse{
		Success:         true,
		Suggestions:     result,
		TokensRemaining: s.gate.Balance(caller),
		ModelUsed:       result.ModelUsed,
		TokensUsed:      result.Usage.TotalTokens,
	})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeJSONError(w, http.StatusUnauthorized, "X-User-ID header required")
		return
	}

	cv, ok := decodeCV(w, r)
	if !ok {
		return
	}

	outcome, err := s.gate.Authorize(caller, OpOptimize, CostOptimize, cv)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	if outcome.CacheHit {
		overlay := outcome.Cached.(*models.OptimizedContent)
		writeJSON(w, http.StatusOK, models.CVResponse{
			Success:          true,
			Message:          "CV optimized successfully",
			OptimizedContent: overlay,
			Suggestions:      overlay.Suggestions,
			Cached:           true,
			TokensRemaining:  s.gate.Balance(caller),
		})
		return
	}

	result, err := s.genai.Optimize(r.Context(), cv)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	s.gate.StoreResult(outcome.Authorization.Fingerprint, &result.Content)
	s.recordUsage(r.Context(), w, caller, OpOptimize, result.ModelUsed, result.Usage)

	writeJSON(w, http.StatusOK, models.CVResponse{
		Success:          true,
		Message:          "CV optimized successfully",
		OptimizedContent: &result.Content,
		Suggestions:      result.Content.Suggestions,
		TokensRemaining:  s.gate.Balance(caller),
		ModelUsed:        result.ModelUsed,
		TokensUsed:       result.Usage.TotalTokens,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeJSONError(w, http.StatusUnauthorized, "X-User-ID header required")
		return
	}

	cv, ok := decodeCV(w, r)
	if !ok {
		return
	}

	outcome, err := s.gate.Authorize(caller, OpGenerate, CostGenerate, cv)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	var overlay *models.OptimizedContent
	if outcome.CacheHit {
		overlay = outcome.Cached.(*models.OptimizedContent)
	} else {
		result, err := s.genai.Optimize(r.Context(), cv)
		if err != nil {
			// Tokens are already spent; fall back to an unoptimized
			// document rather than returning nothing.
			slog.Warn("optimization failed, rendering without overlay",
				"caller", caller, "error", err)
		} else {
			overlay = &result.Content
			s.gate.StoreResult(outcome.Authorization.Fingerprint, overlay)
			s.recordUsage(r.Context(), w, caller, OpGenerate, result.ModelUsed, result.Usage)
		}
	}

	s.serveDocument(w, caller, cv, overlay, outcome.CacheHit)
}

func (s *Server) handleGeneratePlain(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeJSONError(w, http.StatusUnauthorized, "X-User-ID header required")
		return
	}

	cv, ok := decodeCV(w, r)
	if !ok {
		return
	}

	// Results are never cached for this operation, so every call is a
	// cache miss and debits the declared cost.
	if _, err := s.gate.Authorize(caller, OpGeneratePlain, CostGeneratePlain, cv); err != nil {
		s.writeOperationError(w, err)
		return
	}

	s.serveDocument(w, caller, cv, nil, false)
}

func (s *Server) serveDocument(w http.ResponseWriter, caller string, cv models.CVRequest, overlay *models.OptimizedContent, cached bool) {
	doc, err := s.renderer.Render(cv, overlay)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", render.Filename(cv.PersonalInfo.FullName)))
	w.Header().Set("X-Tokens-Remaining", fmt.Sprintf("%d", s.gate.Balance(caller)))
	if cached {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func decodeCV(w http.ResponseWriter, r *http.Request) (models.CVRequest, bool) {
	var cv models.CVRequest
	if err := json.NewDecoder(r.Body).Decode(&cv); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return cv, false
	}
	if cv.PersonalInfo.FullName == "" {
		writeJSONError(w, http.StatusBadRequest, "personal_info.full_name is required")
		return cv, false
	}
	return cv, true
}

// recordUsage writes a usage record for a completed generation call and tags
// the response with the record's request id.
func (s *Server) recordUsage(ctx context.Context, w http.ResponseWriter, caller, operation, model string, usage models.Usage) {
	reqID := uuid.NewString()
	w.Header().Set("X-Request-ID", reqID)

	if s.tracker == nil {
		return
	}
	rec := models.UsageRecord{
		RequestID:        reqID,
		CallerID:         caller,
		Operation:        operation,
		Model:            model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.tracker.Record(ctx, rec); err != nil {
		slog.Warn("failed to record usage", "caller", caller, "error", err)
	}
}

// writeOperationError maps gate and generation failures onto distinct
// statuses so callers can tell throttling, balance, and upstream problems
// apart.
func (s *Server) writeOperationError(w http.ResponseWriter, err error) {
	var insufficient *gate.InsufficientTokensError
	var exhausted *genai.ExhaustedError

	switch {
	case errors.Is(err, gate.ErrRateLimited):
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"success": false,
			"error": map[string]any{
				"message":   "insufficient tokens",
				"code":      http.StatusPaymentRequired,
				"required":  insufficient.Required,
				"available": insufficient.Available,
			},
		})
	case breaker.IsOpen(err):
		writeJSONError(w, http.StatusServiceUnavailable, "generation temporarily unavailable")
	case errors.As(err, &exhausted):
		writeJSONError(w, http.StatusBadGateway, "generation failed after retries")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
