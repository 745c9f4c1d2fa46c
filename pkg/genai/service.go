package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/easygo-cv/cvforge/pkg/models"
)

// Service exposes the two CV-specific generation operations on top of the
// retrying client.
type Service struct {
	client *Client
}

// NewService wraps a retrying client.
func NewService(client *Client) *Service {
	return &Service{client: client}
}

// SuggestionsResult carries parsed suggestion content plus call accounting.
type SuggestionsResult struct {
	Skills       []string `json:"skills"`
	Achievements []string `json:"achievements"`
	Keywords     []string `json:"keywords"`

	ModelUsed string       `json:"-"`
	Usage     models.Usage `json:"-"`
}

// Suggestions generates CV advice for a job description.
func (s *Service) Suggestions(ctx context.Context, jobDescription string, experienceYears int) (*SuggestionsResult, error) {
	res, err := s.client.Complete(ctx, suggestionsPrompt(jobDescription, experienceYears), 0.7, 800)
	if err != nil {
		return nil, err
	}

	out := &SuggestionsResult{ModelUsed: res.ModelUsed, Usage: res.Usage}
	if err := json.Unmarshal([]byte(extractJSON(res.Text)), out); err != nil {
		return nil, fmt.Errorf("parse suggestions response: %w", err)
	}
	return out, nil
}

// OptimizeResult carries the content overlay plus call accounting.
type OptimizeResult struct {
	Content   models.OptimizedContent
	ModelUsed string
	Usage     models.Usage
}

// Optimize rewrites the candidate's content for the target job.
func (s *Service) Optimize(ctx context.Context, cv models.CVRequest) (*OptimizeResult, error) {
	res, err := s.client.Complete(ctx, optimizePrompt(cv.JobDescription, cv), 0.7, 2000)
	if err != nil {
		return nil, err
	}

	out := &OptimizeResult{ModelUsed: res.ModelUsed, Usage: res.Usage}
	if err := json.Unmarshal([]byte(extractJSON(res.Text)), &out.Content); err != nil {
		return nil, fmt.Errorf("parse optimization response: %w", err)
	}
	return out, nil
}

// extractJSON trims code fences and surrounding prose some models wrap
// around a JSON body.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
