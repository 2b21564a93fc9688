package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRequire_Rejects(t *testing.T) {
	t.Parallel()

	called := false
	a := AuthenticatorFunc(func(r *http.Request) Result { return Rejected(SchemeJWT, "token expired") })
	handler := Require(a, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/zendesk/context", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invalid_credentials", body["error"])
	assert.Equal(t, "token expired", body["message"])
}

func TestRequire_StoresResult(t *testing.T) {
	t.Parallel()

	a := AuthenticatorFunc(func(r *http.Request) Result {
		return Authenticated(SchemeNIP98, Identity{Pubkey: "abc"})
	})

	var got Result
	var ok bool
	handler := Require(a, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = FromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, ok)
	assert.Equal(t, "abc", got.Identity.Pubkey)
	assert.Equal(t, "abc", got.Identity.Actor())
}

func TestOperatorVerifier(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("op-token"), bcrypt.MinCost)
	require.NoError(t, err)

	sk := nostr.GeneratePrivateKey()
	pk, _ := nostr.GetPublicKey(sk)
	nip := NewNIP98Verifier([]string{pk}, "https://admin.divine.video")
	nip.Now = fixedClock

	v := &OperatorVerifier{TokenHash: string(hash), NIP98: nip}

	tests := []struct {
		name   string
		header string
		ok     bool
		reason string
	}{
		{"bearer ok", "Bearer op-token", true, ""},
		{"bearer wrong", "Bearer nope", false, "invalid operator token"},
		{"nip98 ok", nostrHeader(t, sk, nip98Opts{createdAt: fixedNow, url: "https://admin.divine.video/decisions", method: "GET"}), true, ""},
		{"nip98 stranger", nostrHeader(t, nostr.GeneratePrivateKey(), nip98Opts{createdAt: fixedNow, url: "https://admin.divine.video/decisions", method: "GET"}), false, "pubkey not authorized"},
		{"none", "", false, "missing credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/decisions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			res := v.Authenticate(req)
			assert.Equal(t, tt.ok, res.OK, res.Reason)
			assert.Equal(t, SchemeOperator, res.Scheme)
			if !tt.ok {
				assert.Equal(t, tt.reason, res.Reason)
			}
		})
	}
}

func TestOperatorVerifier_Unconfigured(t *testing.T) {
	t.Parallel()

	v := &OperatorVerifier{NIP98: NewNIP98Verifier(nil, "")}

	req := httptest.NewRequest(http.MethodGet, "/decisions", nil)
	req.Header.Set("Authorization", "Bearer anything")
	assert.Equal(t, "operator token not configured", v.Authenticate(req).Reason)

	req.Header.Set("Authorization", "Nostr abc")
	assert.Equal(t, "no moderator pubkeys configured", v.Authenticate(req).Reason)
}

func TestIdentity_Actor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{name: "pubkey wins", id: Identity{Pubkey: "pk", Email: "a@b.c", Name: "n"}, want: "pk"},
		{name: "email next", id: Identity{Email: "a@b.c", Name: "n"}, want: "a@b.c"},
		{name: "name last", id: Identity{Name: "operator"}, want: "operator"},
		{name: "empty", id: Identity{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.id.Actor())
		})
	}
}
