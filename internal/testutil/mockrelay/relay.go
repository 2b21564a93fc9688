// Package mockrelay provides a fake Nostr relay for tests: NIP-86 management
// over HTTP and NIP-01 publish/query over WebSocket, with failure injection.
package mockrelay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/divinevideo/relay-admin/internal/auth"
)

// RPCCall records one management call the relay accepted for processing.
type RPCCall struct {
	Method  string
	Params  []json.RawMessage
	Headers http.Header
}

// Relay is the fake relay. It is safe for concurrent use.
type Relay struct {
	mu sync.Mutex

	baseURL string
	logger  *slog.Logger

	events        map[string]nostr.Event
	bannedPubkeys map[string]string
	bannedEvents  map[string]string

	rpcCalls  []RPCCall
	published []nostr.Event

	// failure injection
	bareStrings    bool
	failMethods    map[string]methodFailure
	rejectDeletion map[string]string
	rejectKinds    map[int]string
	dropAcks       bool
	closeOnEvent   bool
	requireAuth    bool
}

type methodFailure struct {
	status  int
	message string
}

// NewRelay creates a relay whose NIP-98 checks expect u tags under baseURL.
func NewRelay(baseURL string, logger *slog.Logger) *Relay {
	return &Relay{
		baseURL:        strings.TrimRight(baseURL, "/"),
		logger:         logger,
		events:         make(map[string]nostr.Event),
		bannedPubkeys:  make(map[string]string),
		bannedEvents:   make(map[string]string),
		failMethods:    make(map[string]methodFailure),
		rejectDeletion: make(map[string]string),
		rejectKinds:    make(map[int]string),
		requireAuth:    true,
	}
}

// ServeHTTP routes WebSocket upgrades to the NIP-01 handler and everything
// else to the NIP-86 handler.
func (m *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		m.handleWebSocket(w, r)
		return
	}
	m.handleRPC(w, r)
}

func (m *Relay) setBaseURL(u string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseURL = strings.TrimRight(u, "/")
}

func (m *Relay) verifier() *auth.NIP98Verifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return auth.NewNIP98Verifier(nil, m.baseURL)
}

// AddEvent stores ev as if it had been published earlier.
func (m *Relay) AddEvent(ev nostr.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
}

// HasEvent reports whether the relay still serves id.
func (m *Relay) HasEvent(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[id]
	return ok
}

// BanPubkey marks pubkey banned directly.
func (m *Relay) BanPubkey(pubkey, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bannedPubkeys[pubkey] = reason
}

// IsBanned reports whether pubkey is banned.
func (m *Relay) IsBanned(pubkey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bannedPubkeys[pubkey]
	return ok
}

// RPCCalls returns the management calls received so far.
func (m *Relay) RPCCalls() []RPCCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RPCCall(nil), m.rpcCalls...)
}

// Published returns the events received over EVENT so far, accepted or not.
func (m *Relay) Published() []nostr.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]nostr.Event(nil), m.published...)
}

// SetBareStrings makes listbannedpubkeys and listbannedevents return bare strings.
func (m *Relay) SetBareStrings(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bareStrings = on
}

// FailMethod makes method fail. status 0 answers 200 with an error field;
// any other status answers that HTTP status with message as body.
func (m *Relay) FailMethod(method string, status int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failMethods[method] = methodFailure{status: status, message: message}
}

// RejectDeletionOf makes deletion events that reference id get OK false.
func (m *Relay) RejectDeletionOf(id, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectDeletion[id] = message
}

// RejectKind makes every event of kind get OK false.
func (m *Relay) RejectKind(kind int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectKinds[kind] = message
}

// DropAcks stops the relay from answering EVENT at all.
func (m *Relay) DropAcks(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropAcks = on
}

// CloseOnEvent makes the relay hang up when it receives EVENT.
func (m *Relay) CloseOnEvent(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeOnEvent = on
}

// RequireAuth toggles NIP-98 checks on management calls. On by default.
func (m *Relay) RequireAuth(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireAuth = on
}

// query returns stored events matching any filter, newest first, honouring
// each filter's limit.
func (m *Relay) query(filters []nostr.Filter) []nostr.Event {
	m.mu.Lock()
	all := make([]nostr.Event, 0, len(m.events))
	for _, ev := range m.events {
		all = append(all, ev)
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt > all[j].CreatedAt
		}
		return all[i].ID < all[j].ID
	})

	seen := make(map[string]bool)
	var out []nostr.Event
	for _, f := range filters {
		n := 0
		for i := range all {
			if f.Limit > 0 && n >= f.Limit {
				break
			}
			if f.Matches(&all[i]) {
				n++
				if !seen[all[i].ID] {
					seen[all[i].ID] = true
					out = append(out, all[i])
				}
			}
		}
	}
	return out
}

func (m *Relay) log(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}
