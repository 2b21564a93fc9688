package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/divinevideo/relay-admin/internal/consensus"
	"github.com/divinevideo/relay-admin/internal/media"
	"github.com/divinevideo/relay-admin/internal/metrics"
)

// ModerateMediaRequest is the body of POST /moderate-media.
type ModerateMediaRequest struct {
	SHA256 string `json:"sha256"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// ModerateMediaResponse echoes the moderation service's answer.
type ModerateMediaResponse struct {
	SHA256 string          `json:"sha256"`
	Action string          `json:"action"`
	Result json.RawMessage `json:"result"`
}

// HandleModerateMedia proxies a moderation action to the media service
// POST /moderate-media
func (s *Server) HandleModerateMedia(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Media == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "moderation service is not configured")
		return
	}

	var req ModerateMediaRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}
	if err := media.ValidateHash(req.SHA256); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	action := strings.ToUpper(strings.TrimSpace(req.Action))
	if action == "" {
		action = media.ActionBlock
	}

	raw, err := s.cfg.Media.Moderate(r.Context(), req.SHA256, action, req.Reason)
	if err != nil {
		s.logger.Warn("media moderation failed", "sha256", req.SHA256, "error", err)
		writeUpstreamError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, ModerateMediaResponse{
		SHA256: strings.ToLower(req.SHA256),
		Action: action,
		Result: raw,
	})
}

// CheckResultResponse is the service's stored result plus the consensus
// across its classifier providers.
type CheckResultResponse struct {
	*media.CheckResult
	Blocked   bool               `json:"blocked"`
	Consensus *consensus.Verdict `json:"consensus"`
}

// HandleCheckResult fetches a blob's moderation result and aggregates its providers
// GET /check-result/{sha256}
func (s *Server) HandleCheckResult(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Media == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "moderation service is not configured")
		return
	}

	hash := chi.URLParam(r, "sha256")
	if err := media.ValidateHash(hash); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	res, err := s.cfg.Media.CheckResult(r.Context(), hash)
	switch {
	case errors.Is(err, media.ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "no moderation result for "+strings.ToLower(hash))
		return
	case err != nil:
		s.logger.Warn("check-result failed", "sha256", hash, "error", err)
		writeUpstreamError(w, err, nil)
		return
	}

	verdict := consensus.Aggregate(res.Providers)
	if verdict != nil {
		metrics.RecordConsensus(verdict.Verdict, verdict.Agreement)
	}
	writeJSON(w, http.StatusOK, CheckResultResponse{
		CheckResult: res,
		Blocked:     res.Blocked(),
		Consensus:   verdict,
	})
}
