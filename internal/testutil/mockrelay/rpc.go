package mockrelay

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/divinevideo/relay-admin/internal/relay"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func (m *Relay) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("Content-Type") != relay.ContentTypeRPC {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	m.mu.Lock()
	requireAuth := m.requireAuth
	m.mu.Unlock()
	if requireAuth {
		if res := m.verifier().Authenticate(r); !res.OK {
			m.log("mockrelay rejected rpc auth", "reason", res.Reason)
			http.Error(w, res.Reason, http.StatusUnauthorized)
			return
		}
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.rpcCalls = append(m.rpcCalls, RPCCall{Method: req.Method, Params: req.Params, Headers: r.Header.Clone()})
	failure, failing := m.failMethods[req.Method]
	m.mu.Unlock()

	if failing {
		if failure.status != 0 {
			http.Error(w, failure.message, failure.status)
			return
		}
		writeRPC(w, nil, failure.message)
		return
	}

	result, errMsg := m.dispatch(req)
	writeRPC(w, result, errMsg)
}

func (m *Relay) dispatch(req rpcRequest) (any, string) {
	str := func(i int) string {
		if i >= len(req.Params) {
			return ""
		}
		var s string
		_ = json.Unmarshal(req.Params[i], &s)
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch req.Method {
	case relay.MethodSupportedMethods:
		return []string{
			relay.MethodSupportedMethods,
			relay.MethodBanPubkey, relay.MethodAllowPubkey, relay.MethodListBannedPubkeys,
			relay.MethodBanEvent, relay.MethodAllowEvent, relay.MethodListBannedEvents,
		}, ""
	case relay.MethodBanPubkey:
		if str(0) == "" {
			return nil, "missing pubkey"
		}
		m.bannedPubkeys[str(0)] = str(1)
		return true, ""
	case relay.MethodAllowPubkey:
		delete(m.bannedPubkeys, str(0))
		return true, ""
	case relay.MethodBanEvent:
		if str(0) == "" {
			return nil, "missing event id"
		}
		m.bannedEvents[str(0)] = str(1)
		delete(m.events, str(0))
		return true, ""
	case relay.MethodAllowEvent:
		delete(m.bannedEvents, str(0))
		return true, ""
	case relay.MethodListBannedPubkeys:
		return m.list(m.bannedPubkeys, "pubkey"), ""
	case relay.MethodListBannedEvents:
		return m.list(m.bannedEvents, "id"), ""
	}
	return nil, "unsupported method: " + req.Method
}

// list must be called with mu held.
func (m *Relay) list(entries map[string]string, key string) any {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if m.bareStrings {
		return keys
	}
	out := make([]map[string]string, 0, len(keys))
	for _, k := range keys {
		entry := map[string]string{key: k}
		if reason := entries[k]; reason != "" {
			entry["reason"] = reason
		}
		out = append(out, entry)
	}
	return out
}

func writeRPC(w http.ResponseWriter, result any, errMsg string) {
	resp := map[string]any{"result": result}
	if errMsg != "" {
		resp["error"] = errMsg
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
