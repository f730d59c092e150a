package twitter

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// fallbackRateLimitDelay is used when the API returns 429 without a usable
// x-rate-limit-reset header. Matches the standard 15 minute API window.
const fallbackRateLimitDelay = 15 * time.Minute

// RateLimitError signals the API quota is exhausted. ResetAt is when the
// window reopens; callers pause work until then instead of retrying.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("twitter api rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// newRateLimitError derives the reset instant from the response headers.
// x-rate-limit-reset carries epoch seconds.
func newRateLimitError(resp *http.Response) *RateLimitError {
	if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil && epoch > 0 {
			return &RateLimitError{ResetAt: time.Unix(epoch, 0).UTC()}
		}
	}
	return &RateLimitError{ResetAt: time.Now().UTC().Add(fallbackRateLimitDelay)}
}

// APIError is a non-429 error response from the API.
type APIError struct {
	StatusCode int
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter api %s returned status %d", e.Endpoint, e.StatusCode)
}
