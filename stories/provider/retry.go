package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// RetryPolicy retries rate-limited and server-side failures with fixed per-attempt waits.
// Any other error fails immediately.
type RetryPolicy struct {
	MaxAttempts      int
	RateLimitWaits   []time.Duration
	ServerErrorWaits []time.Duration

	// OnRetry is called before each wait. Optional.
	OnRetry func(attempt int, wait time.Duration, err error)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      3,
		RateLimitWaits:   []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second},
		ServerErrorWaits: []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second},
	}
}

// NoRetry makes exactly one attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// CallWithRetry runs fn until it succeeds, returns a non-retryable error, or the attempts run out.
func CallWithRetry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == maxAttempts-1 {
			break
		}

		var waits []time.Duration
		switch {
		case isRateLimitError(err):
			waits = p.RateLimitWaits
		case isServerError(err):
			waits = p.ServerErrorWaits
		default:
			return zero, err
		}
		wait := waitFor(waits, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	if maxAttempts == 1 || !isRetryable(lastErr) {
		return zero, lastErr
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

func waitFor(waits []time.Duration, attempt int) time.Duration {
	if len(waits) == 0 {
		return 0
	}
	if attempt >= len(waits) {
		return waits[len(waits)-1]
	}
	return waits[attempt]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryable(err error) bool {
	return isRateLimitError(err) || isServerError(err)
}

func statusCode(err error) int {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	var genErr genai.APIError
	if errors.As(err, &genErr) {
		return genErr.Code
	}
	var genPtr *genai.APIError
	if errors.As(err, &genPtr) {
		return genPtr.Code
	}
	return 0
}

// Status codes in error text only count next to a status keyword or reason phrase, so
// "max 500 tokens" is not a server error.
var (
	rateLimitText   = regexp.MustCompile(`\b(status|code|http)\s*:?\s*429\b|\b429 too many requests|rate limit|too many requests|resource_exhausted`)
	serverErrorText = regexp.MustCompile(`\b(status|code|http)\s*:?\s*5\d\d\b|\b5\d\d (internal server error|bad gateway|service unavailable|gateway timeout|overloaded)|internal server error|server_error|service unavailable|bad gateway|overloaded`)
)

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if code := statusCode(err); code != 0 {
		return code == http.StatusTooManyRequests
	}
	return rateLimitText.MatchString(strings.ToLower(err.Error()))
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	if code := statusCode(err); code != 0 {
		return code >= 500
	}
	return serverErrorText.MatchString(strings.ToLower(err.Error()))
}
