package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HandleHealth returns basic health status
// GET /health
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady checks database connectivity
// GET /ready
// Returns 200 if database is accessible, 503 otherwise
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "error",
			"database": "not configured",
		})
		return
	}

	// Check database connectivity with a lightweight ping
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.cfg.Store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "error",
			"database": "unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"database": "connected",
	})
}

// InfoResponse describes the relay this service administers.
type InfoResponse struct {
	Pubkey        string `json:"pubkey,omitempty"`
	RelayURL      string `json:"relayUrl"`
	ManagementURL string `json:"managementUrl,omitempty"`
}

// HandleInfo reports the signer pubkey and relay endpoints
// GET /info
func (s *Server) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info := InfoResponse{RelayURL: s.cfg.RelayURL}
	if s.cfg.RPC != nil {
		info.ManagementURL = s.cfg.RPC.URL()
	}
	if s.cfg.Signer != nil {
		pk, err := s.cfg.Signer.PublicKey(r.Context())
		if err != nil {
			s.logger.Warn("signer pubkey unavailable", "error", err)
		}
		info.Pubkey = pk
	}
	writeJSON(w, http.StatusOK, info)
}

// SetLogLevelRequest is the request body for POST /admin/loglevel
type SetLogLevelRequest struct {
	Level string `json:"level"`
}

// HandleSetLogLevel changes runtime log level
// POST /admin/loglevel
// Body: {"level": "debug|info|warn|error"}
func (s *Server) HandleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req SetLogLevelRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}

	var level slog.Level
	switch strings.ToLower(req.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		WriteErrorWithHint(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"Invalid level", "must be one of: debug, info, warn, error")
		return
	}

	s.logLevel.Set(level)
	s.logger.Info("log level changed", "new_level", level.String())

	writeJSON(w, http.StatusOK, map[string]string{"level": strings.ToLower(req.Level)})
}
