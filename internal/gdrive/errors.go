// Package gdrive lists and downloads Google Drive folder contents for the
// sync engine and the download proxy, with error classification.
package gdrive

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Sentinel errors for Drive API failures.
// Use errors.Is(err, gdrive.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("gdrive: bad request")
	ErrUnauthorized = errors.New("gdrive: unauthorized")
	ErrForbidden    = errors.New("gdrive: forbidden")
	ErrNotFound     = errors.New("gdrive: not found")
	ErrThrottled    = errors.New("gdrive: throttled")
	ErrServerError  = errors.New("gdrive: server error")
)

// ProviderError wraps a sentinel error with the operation, HTTP status, and
// the API's first error reason and message.
type ProviderError struct {
	Op         string
	StatusCode int
	Reason     string
	Message    string
	Err        error // sentinel, for errors.Is(); nil when unclassified
}

func (e *ProviderError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("gdrive: %s: HTTP %d (%s): %s", e.Op, e.StatusCode, e.Reason, e.Message)
	}

	return fmt.Sprintf("gdrive: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Drive reports per-user and per-project quota exhaustion as 403 with one of
// these reasons.
var throttleReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a sentinel.
func classifyStatus(code int, reason string) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		if throttleReasons[reason] {
			return ErrThrottled
		}

		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// wrapError converts an API call error into a *ProviderError when it carries
// an HTTP status. Transport and context errors are wrapped with the op only.
func wrapError(op string, err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("gdrive: %s: %w", op, err)
	}

	var reason string
	if len(apiErr.Errors) > 0 {
		reason = apiErr.Errors[0].Reason
	}

	return &ProviderError{
		Op:         op,
		StatusCode: apiErr.Code,
		Reason:     reason,
		Message:    apiErr.Message,
		Err:        classifyStatus(apiErr.Code, reason),
	}
}
