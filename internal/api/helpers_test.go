package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/divinevideo/relay-admin/internal/auth"
	"github.com/divinevideo/relay-admin/internal/helpdesk"
	"github.com/divinevideo/relay-admin/internal/media"
	"github.com/divinevideo/relay-admin/internal/moderation"
	"github.com/divinevideo/relay-admin/internal/relay"
	"github.com/divinevideo/relay-admin/internal/storage"
)

var (
	pubkeyA   = strings.Repeat("a", 64)
	moderator = strings.Repeat("b", 64)
	event1    = strings.Repeat("1", 64)
	hashX     = strings.Repeat("e", 64)
)

const (
	operatorToken = "Bearer operator-ok"
	helpdeskToken = "Bearer helpdesk-ok"
	nostrAuth     = "Nostr signed"
	webhookAuth   = "hook-secret"
)

// fakeModerator records intents and returns canned results.
type fakeModerator struct {
	mu       sync.Mutex
	intents  []moderation.Intent
	result   *moderation.Result
	err      error
	reopened []string
	verify   *moderation.Verification
	verified [][2]string
}

func (f *fakeModerator) Execute(_ context.Context, in moderation.Intent) (*moderation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, in)
	res := f.result
	if res == nil {
		res = &moderation.Result{Kind: in.Kind(), Target: in.Target(), Status: moderation.StatusSucceeded}
	}
	return res, f.err
}

func (f *fakeModerator) Reopen(_ context.Context, target string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reopened = append(f.reopened, target)
	return 2, nil
}

func (f *fakeModerator) VerifyTarget(_ context.Context, targetType, targetID string) (*moderation.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, [2]string{targetType, targetID})
	if f.verify != nil {
		return f.verify, nil
	}
	return &moderation.Verification{Status: moderation.VerificationVerified}, nil
}

type fakeRPC struct {
	mu       sync.Mutex
	banned   []relay.BannedPubkey
	listErr  error
	callErr  error
	calls    []string
	listHits int
}

func (f *fakeRPC) URL() string { return "https://relay.example/management" }

func (f *fakeRPC) Call(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return json.RawMessage(`true`), nil
}

func (f *fakeRPC) ListBannedPubkeys(context.Context) ([]relay.BannedPubkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listHits++
	return f.banned, f.listErr
}

type fakeMediaService struct {
	result *media.CheckResult
	err    error
	calls  []string
}

func (f *fakeMediaService) Moderate(_ context.Context, sha, action, _ string) (json.RawMessage, error) {
	f.calls = append(f.calls, action+":"+sha)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (f *fakeMediaService) CheckResult(context.Context, string) (*media.CheckResult, error) {
	return f.result, f.err
}

type fakeSigner struct{}

func (fakeSigner) PublicKey(context.Context) (string, error) { return moderator, nil }

type fakeIssuer struct{ err error }

func (f fakeIssuer) Issue(_ context.Context, pubkey, _, _ string) (*helpdesk.MobileToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &helpdesk.MobileToken{Token: "jwt-for-" + pubkey}, nil
}

type noteSink struct {
	mu    sync.Mutex
	notes []helpdesk.Note
}

func (s *noteSink) Enqueue(n helpdesk.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
	return nil
}

// headerAuth authenticates requests whose Authorization header equals want.
func headerAuth(scheme auth.Scheme, header, want string, id auth.Identity) auth.Authenticator {
	return auth.AuthenticatorFunc(func(r *http.Request) auth.Result {
		if r.Header.Get(header) != want {
			return auth.Rejected(scheme, "missing credentials")
		}
		return auth.Authenticated(scheme, id)
	})
}

type testServer struct {
	*Server
	handler   http.Handler
	store     *storage.SQLiteStorage
	moderator *fakeModerator
	rpc       *fakeRPC
	media     *fakeMediaService
	notes     *noteSink
}

func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()

	store, err := storage.New(":memory:", make([]byte, 32))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ts := &testServer{
		store:     store,
		moderator: &fakeModerator{},
		rpc:       &fakeRPC{},
		media:     &fakeMediaService{},
		notes:     &noteSink{},
	}
	cfg := Config{
		Store:     store,
		Moderator: ts.moderator,
		RPC:       ts.rpc,
		Media:     ts.media,
		Signer:    fakeSigner{},
		Mobile:    fakeIssuer{},
		Notes:     ts.notes,

		Operator: headerAuth(auth.SchemeOperator, "Authorization", operatorToken, auth.Identity{Pubkey: moderator}),
		Helpdesk: headerAuth(auth.SchemeJWT, "Authorization", helpdeskToken, auth.Identity{Email: "agent@divine.video"}),
		NIP98:    headerAuth(auth.SchemeNIP98, "Authorization", nostrAuth, auth.Identity{Pubkey: pubkeyA}),
		Webhook:  headerAuth(auth.SchemeWebhook, auth.HeaderWebhookSecret, webhookAuth, auth.Identity{}),

		RelayURL:       "wss://relay.example",
		AllowedOrigins: "https://admin.divine.video,*.divine.video",
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	ts.Server = New(cfg)
	ts.handler = ts.NewRouter()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, authHeader string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
