package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/divinevideo/relay-admin/internal/auth"
	"github.com/divinevideo/relay-admin/internal/helpdesk"
	"github.com/divinevideo/relay-admin/internal/storage"
)

// maxNoteDecisions bounds how many prior decisions a ticket note lists per target.
const maxNoteDecisions = 5

// WebhookResponse acknowledges a helpdesk webhook.
type WebhookResponse struct {
	Status   string           `json:"status"`
	TicketID string           `json:"ticketId,omitempty"`
	Report   *helpdesk.Report `json:"report,omitempty"`
	Queued   bool             `json:"queued"`
}

// HandleWebhook parses a ticket event for reported content and queues a
// context note listing prior decisions on it.
// POST /zendesk/webhook
//
// Unusable payloads are acknowledged with 200 so the helpdesk does not retry them.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "unreadable body")
		return
	}

	ticket, ok := helpdesk.ParseTicket(body)
	if !ok {
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "ignored"})
		return
	}
	log := s.logger.With("ticket_id", ticket.ID)

	report := helpdesk.ParseReport(ticket.Text())
	resp := WebhookResponse{Status: "parsed", TicketID: ticket.ID, Report: &report}
	if report.Empty() {
		log.Info("ticket references no nostr content")
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if s.cfg.Notes != nil {
		note := helpdesk.Note{TicketID: ticket.ID, Body: s.contextNote(r, report)}
		if err := s.cfg.Notes.Enqueue(note); err != nil {
			log.Warn("ticket note not queued", "error", err)
		} else {
			resp.Queued = true
		}
	}
	log.Info("ticket parsed",
		"category", report.Category,
		"events", len(report.EventIDs),
		"pubkeys", len(report.Pubkeys),
		"hashes", len(report.Hashes),
	)
	writeJSON(w, http.StatusAccepted, resp)
}

// contextNote renders the report and any prior decisions on its targets.
func (s *Server) contextNote(r *http.Request, report helpdesk.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report category: %s\n", report.Category)

	section := func(title string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", title)
		for _, id := range ids {
			fmt.Fprintf(&b, "- %s", id)
			decisions := s.decisionsFor(r, id)
			if len(decisions) == 0 {
				b.WriteString(" (no prior decisions)\n")
				continue
			}
			b.WriteString("\n")
			for i, d := range decisions {
				if i == maxNoteDecisions {
					fmt.Fprintf(&b, "  ... %d more\n", len(decisions)-maxNoteDecisions)
					break
				}
				fmt.Fprintf(&b, "  %s %s", d.CreatedAt.UTC().Format("2006-01-02 15:04"), d.Action)
				if d.Reason != "" {
					fmt.Fprintf(&b, ": %s", d.Reason)
				}
				b.WriteString("\n")
			}
		}
	}
	section("Pubkeys", report.Pubkeys)
	section("Events", report.EventIDs)
	section("Media", report.Hashes)
	return strings.TrimRight(b.String(), "\n")
}

func (s *Server) decisionsFor(r *http.Request, id string) []*storage.Decision {
	if s.cfg.Store == nil {
		return nil
	}
	decisions, err := s.cfg.Store.GetDecisionsForTarget(r.Context(), id)
	if err != nil {
		s.logger.Warn("decision lookup failed", "target", id, "error", err)
		return nil
	}
	return decisions
}

// ParseReportRequest is the body of POST /zendesk/parse-report.
type ParseReportRequest struct {
	Text        string `json:"text"`
	Subject     string `json:"subject,omitempty"`
	Description string `json:"description,omitempty"`
}

// HandleParseReport extracts nostr identifiers and a category from free text
// POST /zendesk/parse-report
func (s *Server) HandleParseReport(w http.ResponseWriter, r *http.Request) {
	var req ParseReportRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}
	text := strings.TrimSpace(strings.Join([]string{req.Subject, req.Description, req.Text}, "\n"))
	if text == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, helpdesk.ParseReport(text))
}

// MobileJWTRequest is the optional body of POST /zendesk/mobile-jwt.
type MobileJWTRequest struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// HandleMobileJWT issues a helpdesk messaging token for the NIP-98 caller
// POST /zendesk/mobile-jwt
func (s *Server) HandleMobileJWT(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Mobile == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "mobile messaging is not configured")
		return
	}

	var req MobileJWTRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}
	res, _ := auth.FromContext(r.Context())
	if res.Identity.Pubkey == "" {
		WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "a NIP-98 signed request is required")
		return
	}

	tok, err := s.cfg.Mobile.Issue(r.Context(), res.Identity.Pubkey, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, helpdesk.ErrNotConfigured) {
			WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "mobile messaging is not configured")
			return
		}
		s.logger.Error("failed to issue mobile token", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// ContextResponse is what a helpdesk agent sees about a pubkey or event.
type ContextResponse struct {
	Pubkey    string              `json:"pubkey,omitempty"`
	EventID   string              `json:"eventId,omitempty"`
	Banned    *bool               `json:"banned,omitempty"`
	Decisions []*storage.Decision `json:"decisions"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// HandleContext returns decisions and ban status for a pubkey or event.
// Responses are cached briefly and dropped when a moderation action touches the subject.
// GET /zendesk/context?pubkey=|eventId=
func (s *Server) HandleContext(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "audit store is not configured")
		return
	}

	q := r.URL.Query()
	kind, id := "pubkey", strings.ToLower(strings.TrimSpace(q.Get("pubkey")))
	if id == "" {
		kind, id = "event", strings.ToLower(strings.TrimSpace(q.Get("eventId")))
	}
	if !isHexID(id) {
		WriteErrorWithHint(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"pubkey or eventId must be 64 hex characters", "pass ?pubkey=<hex> or ?eventId=<hex>")
		return
	}

	key := contextKey(kind, id)
	if cached, ok := s.contexts.Get(key); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, cached)
		return
	}

	decisions, err := s.cfg.Store.GetDecisionsForTarget(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get decisions", "target", id, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to get decisions")
		return
	}
	resp := &ContextResponse{Decisions: decisions}
	if kind == "event" {
		resp.EventID = id
	} else {
		resp.Pubkey = id
		if s.cfg.RPC != nil {
			if banned, err := s.isBanned(r, id); err != nil {
				resp.Warnings = append(resp.Warnings, "ban status unavailable: "+err.Error())
			} else {
				resp.Banned = &banned
			}
		}
	}

	// partial answers are not cached
	if len(resp.Warnings) == 0 {
		s.contexts.Add(key, resp)
	}
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) isBanned(r *http.Request, pubkey string) (bool, error) {
	list, err := s.cfg.RPC.ListBannedPubkeys(r.Context())
	if err != nil {
		return false, err
	}
	for _, b := range list {
		if strings.EqualFold(b.Pubkey, pubkey) {
			return true, nil
		}
	}
	return false, nil
}
