// ABOUTME: Error types returned by the remote table client
// ABOUTME: Distinguishes configuration problems, API rejections and exhausted retries
package airtable

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// maxErrorBody is how much of a failed response body is kept on an APIError.
const maxErrorBody = 500

// ErrRetriesExhausted matches any *RetriesExhaustedError via errors.Is.
var ErrRetriesExhausted = errors.New("airtable: retries exhausted")

// ConfigurationError reports missing or unusable credentials and inputs.
// The message is meant to be shown to the user as-is.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return "configuration error: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// APIError is a non-2xx response that is not worth retrying.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	// Body is the response body, truncated.
	Body string
	// Type and Message come from the JSON error envelope when present.
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable: %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// RetriesExhaustedError is returned when every attempt got a retryable status.
type RetriesExhaustedError struct {
	Method     string
	URL        string
	Attempts   int
	LastStatus int
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("airtable: %s %s still failing with %d after %d attempts",
		e.Method, e.URL, e.LastStatus, e.Attempts)
}

func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// IsUnknownField reports whether err is the API's rejection of a field name
// that does not exist in the table.
func IsUnknownField(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Type == "UNKNOWN_FIELD_NAME" || strings.Contains(apiErr.Body, "UNKNOWN_FIELD_NAME")
}

func newAPIError(method, url string, status int, body []byte) *APIError {
	e := &APIError{
		Method:     method,
		URL:        url,
		StatusCode: status,
		Body:       truncate(string(body), maxErrorBody),
	}

	// The envelope is either {"error": {"type": ..., "message": ...}} or {"error": "TYPE"}.
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var detail struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &detail) == nil {
			e.Type = detail.Type
			e.Message = detail.Message
		} else {
			var plain string
			if json.Unmarshal(envelope.Error, &plain) == nil {
				e.Type = plain
			}
		}
	}

	return e
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
