package helpdesk

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the helpdesk API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("helpdesk: %s: %s", e.Status, e.Message)
	}
	return "helpdesk: " + e.Status
}

var (
	// ErrNotConfigured is returned when subdomain or API credentials are missing.
	ErrNotConfigured = errors.New("helpdesk: not configured")

	// ErrInvalidTicket is returned for an empty or non-numeric ticket id.
	ErrInvalidTicket = errors.New("helpdesk: invalid ticket id")

	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("helpdesk: queue closed")

	// ErrQueueFull is returned by Enqueue when the buffer is full.
	ErrQueueFull = errors.New("helpdesk: queue full")
)
