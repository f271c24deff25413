package adapter

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"jobpulse/internal/model"
)

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// httpError maps a non-2xx response to a typed HTTPError so the retry policy
// can distinguish rate limits and server errors from permanent failures.
func httpError(resp *http.Response) error {
	return &model.HTTPError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		Err:        fmt.Errorf("%s %s", resp.Request.Method, resp.Request.URL.Path),
	}
}
