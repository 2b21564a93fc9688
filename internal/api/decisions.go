package api

import (
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/divinevideo/relay-admin/internal/storage"
)

// maxListLimit caps GET /decisions.
const maxListLimit = 500

// DecisionsResponse wraps a list of decisions.
type DecisionsResponse struct {
	Decisions []*storage.Decision `json:"decisions"`
}

// HandleListDecisions lists audit decisions
// GET /decisions?targetType=&targetId=&reportId=&action=&limit=
func (s *Server) HandleListDecisions(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "audit store is not configured")
		return
	}

	q := r.URL.Query()
	filter := storage.DecisionFilter{
		TargetType: q.Get("targetType"),
		TargetID:   strings.ToLower(q.Get("targetId")),
		ReportID:   q.Get("reportId"),
		Action:     q.Get("action"),
		Limit:      100,
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxListLimit)
	}

	decisions, err := s.cfg.Store.ListDecisions(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list decisions", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list decisions")
		return
	}
	writeJSON(w, http.StatusOK, DecisionsResponse{Decisions: decisions})
}

// CreateDecisionRequest is the body of POST /decisions.
type CreateDecisionRequest struct {
	TargetType string `json:"targetType"`
	TargetID   string `json:"targetId"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
	ReportID   string `json:"reportId,omitempty"`
}

// HandleCreateDecision records a decision taken outside this service
// POST /decisions
func (s *Server) HandleCreateDecision(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "audit store is not configured")
		return
	}

	var req CreateDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}
	switch req.TargetType {
	case storage.TargetPubkey, storage.TargetEvent, storage.TargetMedia:
	default:
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "targetType must be pubkey, event or media")
		return
	}
	if !isHexID(req.TargetID) {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "targetId must be 64 hex characters")
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "action is required")
		return
	}

	d, err := s.cfg.Store.AddDecision(r.Context(), &storage.Decision{
		TargetType:      req.TargetType,
		TargetID:        strings.ToLower(req.TargetID),
		Action:          strings.TrimSpace(req.Action),
		Reason:          req.Reason,
		ModeratorPubkey: actorFrom(r),
		ReportID:        req.ReportID,
	})
	if err != nil {
		s.logger.Error("failed to record decision", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to record decision")
		return
	}
	s.invalidate(d.TargetID)
	writeJSON(w, http.StatusCreated, d)
}

// HandleGetDecisions returns the decisions for one target, newest first
// GET /decisions/{targetId}
func (s *Server) HandleGetDecisions(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "audit store is not configured")
		return
	}

	target := strings.ToLower(chi.URLParam(r, "targetId"))
	if !isHexID(target) {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "targetId must be 64 hex characters")
		return
	}
	decisions, err := s.cfg.Store.GetDecisionsForTarget(r.Context(), target)
	if err != nil {
		s.logger.Error("failed to get decisions", "target", target, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to get decisions")
		return
	}
	writeJSON(w, http.StatusOK, DecisionsResponse{Decisions: decisions})
}

// ReopenResponse reports how many decisions a reopen removed.
type ReopenResponse struct {
	TargetID string `json:"targetId"`
	Deleted  int64  `json:"deleted"`
}

// HandleReopen removes the decisions for a target. Relay state is untouched.
// DELETE /decisions/{targetId}
func (s *Server) HandleReopen(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Moderator == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "moderation is not configured")
		return
	}

	target := strings.ToLower(chi.URLParam(r, "targetId"))
	if !isHexID(target) {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "targetId must be 64 hex characters")
		return
	}
	n, err := s.cfg.Moderator.Reopen(r.Context(), target)
	if err != nil {
		s.logger.Error("failed to reopen target", "target", target, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to reopen target")
		return
	}
	s.invalidate(target)
	writeJSON(w, http.StatusOK, ReopenResponse{TargetID: target, Deleted: n})
}

func isHexID(s string) bool {
	b, err := hex.DecodeString(s)
	return err == nil && len(b) == 32
}
