package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/divinevideo/relay-admin/internal/relay"
)

// RelayRPCRequest is the body of POST /relay-rpc.
type RelayRPCRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// RelayRPCResponse carries the relay's result verbatim, except for
// listbannedpubkeys which is normalised to {pubkey, reason} objects.
type RelayRPCResponse struct {
	Result any `json:"result"`
}

// HandleRelayRPC forwards a NIP-86 call to the relay
// POST /relay-rpc
func (s *Server) HandleRelayRPC(w http.ResponseWriter, r *http.Request) {
	if s.cfg.RPC == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "relay management is not configured")
		return
	}

	var req RelayRPCRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if method == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "method is required")
		return
	}

	log := s.logger.With("method", method)
	if method == relay.MethodListBannedPubkeys {
		list, err := s.cfg.RPC.ListBannedPubkeys(r.Context())
		if err != nil {
			log.Warn("relay rpc failed", "error", err)
			writeUpstreamError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, RelayRPCResponse{Result: list})
		return
	}

	raw, err := s.cfg.RPC.Call(r.Context(), method, req.Params...)
	if err != nil {
		log.Warn("relay rpc failed", "error", err)
		writeUpstreamError(w, err, nil)
		return
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if method == relay.MethodBanPubkey || method == relay.MethodAllowPubkey {
		if len(req.Params) > 0 {
			if pk, ok := req.Params[0].(string); ok {
				s.invalidate(strings.ToLower(pk))
			}
		}
	}
	writeJSON(w, http.StatusOK, RelayRPCResponse{Result: raw})
}
