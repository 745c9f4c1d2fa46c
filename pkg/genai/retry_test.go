package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easygo-cv/cvforge/pkg/breaker"
	"github.com/easygo-cv/cvforge/pkg/clock"
	"github.com/easygo-cv/cvforge/pkg/models"
)

var (
	errTransient = errors.New("upstream returned 503 service unavailable")
	errTerminal  = errors.New("invalid request: model parameter malformed")
)

// scriptedCompleter replays a fixed sequence of outcomes and records the
// model used on each attempt.
type scriptedCompleter struct {
	outcomes []error
	calls    []string
}

func (s *scriptedCompleter) Complete(_ context.Context, req Request) (*Completion, error) {
	s.calls = append(s.calls, req.Model)
	i := len(s.calls) - 1
	if i < len(s.outcomes) && s.outcomes[i] != nil {
		return nil, s.outcomes[i]
	}
	return &Completion{
		Text:      `{"summary":"ok"}`,
		ModelUsed: req.Model,
		Usage:     models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func noSleep(t *testing.T) (ClientOption, *[]time.Duration) {
	t.Helper()
	var delays []time.Duration
	opt := WithSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})
	return opt, &delays
}

func newTestClient(t *testing.T, completer Completer, fallback string, opts ...ClientOption) *Client {
	t.Helper()
	br := breaker.New(breaker.WithClock(clock.NewFake(time.Now())))
	return NewClient(completer, br, "gpt-4-turbo-preview", fallback, opts...)
}

func TestCompleteSucceedsFirstTry(t *testing.T) {
	fake := &scriptedCompleter{}
	c := newTestClient(t, fake, "gpt-3.5-turbo")

	res, err := c.Complete(context.Background(), nil, 0.7, 100)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo-preview", res.ModelUsed)
	assert.Equal(t, 15, res.Usage.TotalTokens)
	assert.Len(t, fake.calls, 1)
}

func TestCompleteRetriesThenSucceedsOnPrimary(t *testing.T) {
	fake := &scriptedCompleter{outcomes: []error{errTransient, errTransient, nil}}
	sleepOpt, delays := noSleep(t)
	c := newTestClient(t, fake, "gpt-3.5-turbo", sleepOpt)

	res, err := c.Complete(context.Background(), nil, 0.7, 100)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo-preview", res.ModelUsed)
	assert.Equal(t, []string{"gpt-4-turbo-preview", "gpt-4-turbo-preview", "gpt-4-turbo-preview"}, fake.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *delays)
}

func TestBackoffDelaysAreCapped(t *testing.T) {
	fake := &scriptedCompleter{outcomes: []error{
		errTransient, errTransient, errTransient, errTransient, nil,
	}}
	sleepOpt, delays := noSleep(t)
	c := newTestClient(t, fake, "", sleepOpt, WithMaxRetries(5), WithBackoff(4*time.Second, 10*time.Second))

	_, err := c.Complete(context.Background(), nil, 0.7, 100)
	require.NoError(t, err)
	// 4s, 8s, then capped at 10s.
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}, *delays)
}

func TestFallbackModelGetsFreshRetries(t *testing.T) {
	fake := &scriptedCompleter{outcomes: []error{
		errTransient, errTransient, errTransient, // primary exhausted
		errTransient, nil, // fallback succeeds on its second attempt
	}}
	sleepOpt, _ := noSleep(t)
	c := newTestClient(t, fake, "gpt-3.5-turbo", sleepOpt)

	res, err := c.Complete(context.Background(), nil, 0.7, 100)
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", res.ModelUsed)
	assert.Equal(t, []string{
		"gpt-4-turbo-preview", "gpt-4-turbo-preview", "gpt-4-turbo-preview",
		"gpt-3.5-turbo", "gpt-3.5-turbo",
	}, fake.calls)
}

func TestExhaustedWrapsLastError(t *testing.T) {
	fake := &scriptedCompleter{outcomes: []error{
		errTransient, errTransient, errTransient,
		errTransient, errTransient, errTransient,
	}}
	sleepOpt, _ := noSleep(t)
	c := newTestClient(t, fake, "gpt-3.5-turbo", sleepOpt)

	_, err := c.Complete(context.Background(), nil, 0.7, 100)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 6, exhausted.Attempts)
	assert.ErrorIs(t, err, errTransient)
}

func TestNoFallbackConfigured(t *testing.T) {
	fake := &scriptedCompleter{outcomes: []error{errTransient, errTransient, errTransient}}
	sleepOpt, _ := noSleep(t)
	c := newTestClient(t, fake, "", sleepOpt)

	_, err := c.Complete(context.Background(), nil, 0.7, 100)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, fake.calls, 3)
}

func TestTerminalErrorSurfacesImmediately(t *testing.T) {
	fake := &scriptedCompleter{outcomes: []error{errTerminal}}
	sleepOpt, delays := noSleep(t)
	c := newTestClient(t, fake, "gpt-3.5-turbo", sleepOpt)

	_, err := c.Complete(context.Background(), nil, 0.7, 100)
	require.ErrorIs(t, err, errTerminal)
	assert.Len(t, fake.calls, 1)
	assert.Empty(t, *delays)
}

func TestOpenCircuitShortCircuits(t *testing.T) {
	fake := &scriptedCompleter{outcomes: []error{errTerminal, errTerminal, errTerminal, errTerminal, errTerminal}}
	sleepOpt, _ := noSleep(t)
	c := newTestClient(t, fake, "", sleepOpt, WithMaxRetries(1))

	// Five terminal failures trip the breaker.
	for i := 0; i < 5; i++ {
		_, err := c.Complete(context.Background(), nil, 0.7, 100)
		require.Error(t, err)
	}

	_, err := c.Complete(context.Background(), nil, 0.7, 100)
	require.ErrorIs(t, err, breaker.ErrOpen)
	assert.Len(t, fake.calls, 5, "open circuit must not reach the completer")
}

func TestSleepHonorsContextCancellation(t *testing.T) {
	fake := &scriptedCompleter{outcomes: []error{errTransient, errTransient}}
	c := newTestClient(t, fake, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, nil, 0.7, 100)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, Retryable(errors.New("rate limit exceeded")))
	assert.True(t, Retryable(errors.New("request timeout")))
	assert.True(t, Retryable(errors.New("connection refused")))
	assert.True(t, Retryable(errors.New("status 502 bad gateway")))
	assert.True(t, Retryable(context.DeadlineExceeded))
	assert.False(t, Retryable(errors.New("invalid api key")))
	assert.False(t, Retryable(nil))
}
