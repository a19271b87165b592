package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var ErrReadOnlyToken = goerr.New("token store is read-only")

// networkErrorDetail is shown when the backend could not be reached at all.
const networkErrorDetail = "Network error: unable to reach the PR Reminder API"

// APIError is the single normalized failure of every gateway call. Its
// message is the server-provided detail verbatim. StatusCode is zero when
// no HTTP response was received.
type APIError struct {
	Detail     string
	StatusCode int
	Op         string
	cause      error
}

func (e *APIError) Error() string { return e.Detail }

func (e *APIError) Unwrap() error { return e.cause }

// LogValues returns attributes for structured logging.
func (e *APIError) LogValues() []any {
	return []any{"detail", e.Detail, "status", e.StatusCode, "op", e.Op}
}

// IsUnauthorized reports whether err is a 401 or 403 from the backend.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode extracts the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// errorDetail derives the APIError message from a non-2xx response body.
func errorDetail(statusCode int, status string, body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Sprintf("HTTP %d: %s", statusCode, statusText(statusCode, status))
	}

	if raw, ok := payload["detail"]; ok {
		if detail := parseDetail(raw); detail != "" {
			return detail
		}
	}
	return fmt.Sprintf("Request failed with status %d", statusCode)
}

// parseDetail accepts a plain string or a list of validation errors with a
// "msg" field each.
func parseDetail(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return ""
}

// statusText returns the reason phrase of an HTTP status line such as
// "500 Internal Server Error", falling back to the standard text.
func statusText(code int, status string) string {
	if _, reason, ok := strings.Cut(status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(code)
}
