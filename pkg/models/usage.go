package models

import "time"

// Usage represents token usage reported by an LLM response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageRecord tracks the token usage of one generation call.
type UsageRecord struct {
	ID               int64     `json:"id"`
	RequestID        string    `json:"request_id"`
	CallerID         string    `json:"caller_id"`
	Operation        string    `json:"operation"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary aggregates generation usage per caller and model.
type UsageSummary struct {
	CallerID        string `json:"caller_id"`
	Model           string `json:"model"`
	RequestCount    int    `json:"request_count"`
	TotalPrompt     int    `json:"total_prompt"`
	TotalCompletion int    `json:"total_completion"`
	TotalTokens     int    `json:"total_tokens"`
}
