package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/divinevideo/relay-admin/internal/auth"
	"github.com/divinevideo/relay-admin/internal/moderation"
	"github.com/divinevideo/relay-admin/internal/storage"
)

// ModerateRequest is the body of POST /moderate and POST /zendesk/action.
// The target comes from the field matching the action: pubkey for bans,
// eventId for deletions and labels, sha256 for media. Target is a fallback.
type ModerateRequest struct {
	Action         string   `json:"action"`
	Pubkey         string   `json:"pubkey,omitempty"`
	EventID        string   `json:"eventId,omitempty"`
	SHA256         string   `json:"sha256,omitempty"`
	Target         string   `json:"target,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	ReportID       string   `json:"reportId,omitempty"`
	TicketID       string   `json:"ticketId,omitempty"`
	DeleteEvents   bool     `json:"deleteEvents,omitempty"`
	EventIDs       []string `json:"eventIds,omitempty"`
	MediaHashes    []string `json:"mediaHashes,omitempty"`
	Label          string   `json:"label,omitempty"`
	LabelNamespace string   `json:"labelNamespace,omitempty"`
}

// Intent validates the request into a moderation intent attributed to actor.
func (req ModerateRequest) Intent(actor string) (moderation.Intent, error) {
	kind, ok := moderation.ParseKind(req.Action)
	if !ok {
		return moderation.Intent{}, errors.New("unknown action " + strings.TrimSpace(req.Action))
	}

	opts := moderation.Options{
		Reason:         req.Reason,
		Actor:          actor,
		ReportID:       req.ReportID,
		TicketID:       req.TicketID,
		DeleteEvents:   req.DeleteEvents,
		EventIDs:       req.EventIDs,
		MediaHashes:    req.MediaHashes,
		Label:          req.Label,
		LabelNamespace: req.LabelNamespace,
	}

	var target string
	switch kind.TargetType() {
	case storage.TargetPubkey:
		target = req.Pubkey
	case storage.TargetMedia:
		target = req.SHA256
	default:
		target = req.EventID
		if kind == moderation.KindLabel && target == "" && req.Pubkey != "" {
			target = req.Pubkey
			opts.LabelPubkey = true
		}
	}
	if target == "" {
		target = req.Target
	}
	return moderation.NewIntent(kind, target, opts)
}

// HandleModerate executes a moderation intent for an operator
// POST /moderate
func (s *Server) HandleModerate(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r)
}

// HandleAction executes a moderation intent for a helpdesk agent
// POST /zendesk/action
func (s *Server) HandleAction(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Moderator == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "moderation is not configured")
		return
	}

	var req ModerateRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}
	in, err := req.Intent(actorFrom(r))
	if err != nil {
		WriteErrorWithHint(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error(),
			"action is one of ban_pubkey, unban_pubkey, delete_event, block_media, unblock_media, label")
		return
	}

	res, err := s.cfg.Moderator.Execute(r.Context(), in)
	s.invalidateResult(res)
	if err != nil {
		var dispatchErr *moderation.DispatchError
		if errors.As(err, &dispatchErr) {
			writeUpstreamError(w, err, res)
			return
		}
		s.logger.Error("moderation failed", "kind", in.Kind(), "target", in.Target(), "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "moderation failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// VerifyRequest is the body of POST /zendesk/verify.
type VerifyRequest struct {
	TargetType string `json:"targetType,omitempty"`
	Target     string `json:"target,omitempty"`
	Pubkey     string `json:"pubkey,omitempty"`
	EventID    string `json:"eventId,omitempty"`
	SHA256     string `json:"sha256,omitempty"`
}

func (req VerifyRequest) resolve() (targetType, target string) {
	switch {
	case req.Pubkey != "":
		return storage.TargetPubkey, req.Pubkey
	case req.EventID != "":
		return storage.TargetEvent, req.EventID
	case req.SHA256 != "":
		return storage.TargetMedia, req.SHA256
	}
	return req.TargetType, req.Target
}

// HandleVerify checks a target's live state against its latest decision
// POST /zendesk/verify
func (s *Server) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Moderator == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "moderation is not configured")
		return
	}

	var req VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}
	targetType, target := req.resolve()
	switch targetType {
	case "", storage.TargetPubkey, storage.TargetEvent, storage.TargetMedia:
	default:
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "targetType must be pubkey, event or media")
		return
	}
	if !isHexID(target) {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "target must be 64 hex characters")
		return
	}

	v, err := s.cfg.Moderator.VerifyTarget(r.Context(), targetType, target)
	if err != nil {
		s.logger.Error("verification failed", "target", target, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "verification failed")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// actorFrom labels the authenticated caller for the audit trail.
func actorFrom(r *http.Request) string {
	res, ok := auth.FromContext(r.Context())
	if !ok {
		return ""
	}
	return res.Identity.Actor()
}
