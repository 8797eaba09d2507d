package harness

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoChecks     = errors.New("harness: no checks configured")
	ErrInvalidCheck = errors.New("harness: invalid check")
	ErrInvalidURL   = errors.New("harness: invalid base url")
)

// RequestError is a non-success HTTP status returned by the API under test.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error! Status: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error! Status: %d body=%q", e.StatusCode, e.Body)
}

// ExpectationError lists gjson paths missing from a successful body.
type ExpectationError struct {
	Missing []string
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("response missing expected fields: %s", strings.Join(e.Missing, ", "))
}

const maxErrorBody = 256

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
