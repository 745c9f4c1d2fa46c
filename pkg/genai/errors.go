package genai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/openai/openai-go"
)

// ExhaustedError reports that every retry against every configured model
// failed. It wraps the last observed failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// retryableStatus covers throttling and transient upstream failures.
func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503:
		return true
	}
	return false
}

// Retryable classifies a completion failure. Throttling, timeouts, connection
// errors, and 5xx-class upstream failures are worth retrying; anything else
// (bad request, auth failure) is terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Fallback on message matching for errors the SDK does not type.
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"rate limit", "timeout", "connection", "429", "500", "502", "503"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
