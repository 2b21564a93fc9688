package mockrelay

import (
	"net/http/httptest"
	"strings"
)

// Server is a Relay behind an httptest.Server.
type Server struct {
	*httptest.Server
	*Relay
}

// New starts a mock relay on a random local port.
func New() *Server {
	r := NewRelay("", nil)
	srv := httptest.NewServer(r)
	r.setBaseURL(srv.URL)
	return &Server{Server: srv, Relay: r}
}

// ManagementURL is the NIP-86 endpoint clients must sign for.
func (s *Server) ManagementURL() string {
	return s.URL + "/"
}

// WebSocketURL is the ws:// URL of the relay.
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}
