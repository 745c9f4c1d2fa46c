package genai

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/easygo-cv/cvforge/pkg/breaker"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// Client wraps a Completer with bounded retries, exponential backoff, model
// fallback, and circuit-breaker gating. The backoff waits suspend only the
// calling request; no shared state is locked across them.
type Client struct {
	completer Completer
	breaker   *breaker.Breaker

	primaryModel  string
	fallbackModel string
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMaxRetries sets attempts per model.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff sets the base and maximum retry delays.
func WithBackoff(base, max time.Duration) ClientOption {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithSleep overrides the wait between attempts. Useful for testing.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) { c.sleep = fn }
}

// NewClient creates a retrying client. fallbackModel may be empty to disable
// fallback.
func NewClient(completer Completer, br *breaker.Breaker, primaryModel, fallbackModel string, opts ...ClientOption) *Client {
	c := &Client{
		completer:     completer,
		breaker:       br,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
		maxRetries:    DefaultMaxRetries,
		baseDelay:     DefaultBaseDelay,
		maxDelay:      DefaultMaxDelay,
		sleep:         sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete runs the completion with retries. Each model gets up to maxRetries
// attempts with delays of baseDelay*2^attempt capped at maxDelay; once the
// primary model's retryable attempts are spent, the fallback model gets a
// fresh budget. Terminal failures surface immediately. Every outcome is
// recorded against the circuit breaker, which is consulted once up front so
// an open circuit costs no network call.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (*Completion, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	model := c.primaryModel
	attempts := 0
	var lastErr error

	for {
		delays := c.newBackoff()
		for attempt := 0; attempt < c.maxRetries; attempt++ {
			res, err := c.completer.Complete(ctx, Request{
				Model:       model,
				Messages:    messages,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
			if err == nil {
				c.breaker.RecordSuccess()
				return res, nil
			}

			attempts++
			lastErr = err
			c.breaker.RecordFailure()

			if !Retryable(err) {
				return nil, err
			}

			if attempt < c.maxRetries-1 {
				delay := delays.NextBackOff()
				slog.Warn("generation attempt failed, retrying",
					"model", model,
					"attempt", attempt+1,
					"max_retries", c.maxRetries,
					"delay", delay,
					"error", err)
				if err := c.sleep(ctx, delay); err != nil {
					return nil, err
				}
			}
		}

		if c.fallbackModel != "" && model != c.fallbackModel {
			slog.Warn("primary model exhausted, switching to fallback",
				"primary", model, "fallback", c.fallbackModel)
			model = c.fallbackModel
			continue
		}
		break
	}

	return nil, &ExhaustedError{Attempts: attempts, Last: lastErr}
}

// BreakerStatus exposes the breaker snapshot for the diagnostics surface.
func (c *Client) BreakerStatus() breaker.Status {
	return c.breaker.Status()
}

// newBackoff builds the per-model delay schedule: baseDelay doubling per
// attempt, capped at maxDelay, no jitter.
func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.baseDelay
	expo.Multiplier = 2
	expo.MaxInterval = c.maxDelay
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	expo.Reset()
	return expo
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
