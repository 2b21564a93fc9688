package media

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from the moderation service.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("media: moderation service returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("media: moderation service returned %s", e.Status)
}

// Sentinel errors for common failure cases.
var (
	ErrNotConfigured = errors.New("media: moderation service not configured")
	ErrNotFound      = errors.New("media: no result for hash")
	ErrInvalidHash   = errors.New("media: sha256 must be 64 hex characters")
)

func parseError(statusCode int, status string, body []byte) error {
	msg := gjson.GetBytes(body, "error")
	if msg.Type == gjson.JSON {
		msg = msg.Get("message")
	}
	if !msg.Exists() {
		msg = gjson.GetBytes(body, "message")
	}
	return &APIError{
		StatusCode: statusCode,
		Status:     status,
		Message:    msg.String(),
		Body:       string(body),
	}
}
