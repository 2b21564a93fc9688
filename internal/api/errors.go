package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/divinevideo/relay-admin/internal/helpdesk"
	"github.com/divinevideo/relay-admin/internal/media"
	"github.com/divinevideo/relay-admin/internal/moderation"
	"github.com/divinevideo/relay-admin/internal/relay"
)

// Standard error codes for API responses.
const (
	// ErrCodeInvalidRequest indicates a malformed request body or parameter.
	ErrCodeInvalidRequest = "invalid_request"

	// ErrCodeInvalidCredentials indicates missing or rejected credentials.
	ErrCodeInvalidCredentials = "invalid_credentials"

	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeUpstream indicates the relay, media service or helpdesk failed.
	ErrCodeUpstream = "upstream_error"

	// ErrCodeNotConfigured indicates the route needs a dependency that is not set up.
	ErrCodeNotConfigured = "not_configured"

	// ErrCodeInternalError indicates a server error.
	ErrCodeInternalError = "internal_error"
)

// APIError is the standard error response format for JSON APIs.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// UpstreamErrorResponse reports a failed call to the relay or a downstream service.
type UpstreamErrorResponse struct {
	APIError
	UpstreamStatus int                `json:"upstreamStatus,omitempty"`
	Result         *moderation.Result `json:"result,omitempty"`
}

// WriteError writes a JSON error response with the given status code, error code, and message.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorWithHint(w, status, code, message, "")
}

// WriteErrorWithHint writes a JSON error response with an optional hint for resolving the error.
func WriteErrorWithHint(w http.ResponseWriter, status int, code, message, hint string) {
	writeJSON(w, status, APIError{
		Error:   code,
		Message: message,
		Hint:    hint,
	})
}

// writeUpstreamError maps a failed outbound call to a response. Configuration
// gaps are 503, everything else 502 carrying the upstream status when known.
func writeUpstreamError(w http.ResponseWriter, err error, res *moderation.Result) {
	if isNotConfigured(err) {
		WriteErrorWithHint(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, err.Error(),
			"check the relay, moderation service and helpdesk settings")
		return
	}
	writeJSON(w, http.StatusBadGateway, UpstreamErrorResponse{
		APIError:       APIError{Error: ErrCodeUpstream, Message: err.Error()},
		UpstreamStatus: upstreamStatus(err),
		Result:         res,
	})
}

// upstreamStatus extracts the HTTP status an upstream answered with, or 0.
func upstreamStatus(err error) int {
	var rpcErr *relay.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.StatusCode
	}
	var mediaErr *media.APIError
	if errors.As(err, &mediaErr) {
		return mediaErr.StatusCode
	}
	var helpdeskErr *helpdesk.APIError
	if errors.As(err, &helpdeskErr) {
		return helpdeskErr.StatusCode
	}
	return 0
}

func isNotConfigured(err error) bool {
	return errors.Is(err, moderation.ErrNotConfigured) ||
		errors.Is(err, media.ErrNotConfigured) ||
		errors.Is(err, helpdesk.ErrNotConfigured) ||
		errors.Is(err, relay.ErrNoSigningKey)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Response write errors are unrecoverable
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
