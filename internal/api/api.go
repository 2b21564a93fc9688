// Package api serves the relay admin HTTP interface: operator moderation
// routes, the audit trail, relay RPC passthrough and the helpdesk integration.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/divinevideo/relay-admin/internal/auth"
	"github.com/divinevideo/relay-admin/internal/helpdesk"
	"github.com/divinevideo/relay-admin/internal/media"
	"github.com/divinevideo/relay-admin/internal/moderation"
	"github.com/divinevideo/relay-admin/internal/relay"
	"github.com/divinevideo/relay-admin/internal/storage"
)

// Defaults for the helpdesk context cache.
const (
	DefaultContextTTL  = 30 * time.Second
	DefaultContextSize = 1024
)

// Store is the audit trail as seen by the HTTP layer.
type Store interface {
	Ping(ctx context.Context) error
	AddDecision(ctx context.Context, d *storage.Decision) (*storage.Decision, error)
	ListDecisions(ctx context.Context, filter storage.DecisionFilter) ([]*storage.Decision, error)
	GetDecisionsForTarget(ctx context.Context, targetID string) ([]*storage.Decision, error)
}

// Moderator executes intents. moderation.Orchestrator implements it.
type Moderator interface {
	Execute(ctx context.Context, in moderation.Intent) (*moderation.Result, error)
	Reopen(ctx context.Context, target string) (int64, error)
	VerifyTarget(ctx context.Context, targetType, targetID string) (*moderation.Verification, error)
}

// RelayRPC is the NIP-86 management client.
type RelayRPC interface {
	URL() string
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	ListBannedPubkeys(ctx context.Context) ([]relay.BannedPubkey, error)
}

// MediaService is the media moderation service client.
type MediaService interface {
	Moderate(ctx context.Context, sha256, action, reason string) (json.RawMessage, error)
	CheckResult(ctx context.Context, sha256 string) (*media.CheckResult, error)
}

// PublicKeyer exposes the service's signing pubkey.
type PublicKeyer interface {
	PublicKey(ctx context.Context) (string, error)
}

// TokenIssuer mints helpdesk messaging tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, pubkey, name, email string) (*helpdesk.MobileToken, error)
}

// NoteQueue accepts helpdesk ticket notes.
type NoteQueue interface {
	Enqueue(n helpdesk.Note) error
}

// Config wires the server. Optional collaborators may be left nil; their
// routes then answer 503.
type Config struct {
	Store     Store
	Moderator Moderator
	RPC       RelayRPC
	Media     MediaService
	Signer    PublicKeyer
	Mobile    TokenIssuer
	Notes     NoteQueue

	// Authenticators per route group.
	Operator auth.Authenticator
	Helpdesk auth.Authenticator
	NIP98    auth.Authenticator
	Webhook  auth.Authenticator

	RelayURL       string
	AllowedOrigins string
	MaxBodyBytes   int64
	ContextTTL     time.Duration

	Logger   *slog.Logger
	LogLevel *slog.LevelVar
}

// Server holds the HTTP handlers.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	logLevel *slog.LevelVar
	contexts *expirable.LRU[string, *ContextResponse]
}

// New creates a Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logLevel := cfg.LogLevel
	if logLevel == nil {
		logLevel = new(slog.LevelVar)
	}
	ttl := cfg.ContextTTL
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}

	return &Server{
		cfg:      cfg,
		logger:   logger,
		logLevel: logLevel,
		contexts: expirable.NewLRU[string, *ContextResponse](DefaultContextSize, nil, ttl),
	}
}

// invalidate drops cached helpdesk context for every target res touched.
func (s *Server) invalidate(targets ...string) {
	for _, t := range targets {
		s.contexts.Remove(contextKey("pubkey", t))
		s.contexts.Remove(contextKey("event", t))
	}
}

func (s *Server) invalidateResult(res *moderation.Result) {
	if res == nil {
		return
	}
	s.invalidate(res.Target)
	for _, sub := range res.SubActions {
		s.invalidate(sub.Target)
	}
}

func contextKey(kind, id string) string {
	return kind + ":" + id
}
