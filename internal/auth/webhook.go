package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/divinevideo/relay-admin/internal/credential"
)

// Webhook signature headers.
const (
	HeaderWebhookSecret    = "X-Webhook-Secret"
	HeaderWebhookTimestamp = "X-Zendesk-Webhook-Signature-Timestamp"
	HeaderWebhookSignature = "X-Zendesk-Webhook-Signature"
)

// DefaultWebhookMaxAge bounds replay of timestamped webhook signatures.
const DefaultWebhookMaxAge = 5 * time.Minute

// WebhookVerifier authenticates helpdesk webhooks either by a static shared
// header or by an HMAC-SHA256 signature over timestamp + "." + body.
type WebhookVerifier struct {
	Secret credential.Credential
	// MaxAge rejects signed requests whose timestamp is further than this
	// from now. Zero disables the check.
	MaxAge time.Duration
	Now    func() time.Time
}

// NewWebhookVerifier returns a verifier with the default replay window.
func NewWebhookVerifier(secret credential.Credential) *WebhookVerifier {
	return &WebhookVerifier{Secret: secret, MaxAge: DefaultWebhookMaxAge, Now: time.Now}
}

// Verify reports whether the request is authentic.
func (v *WebhookVerifier) Verify(ctx context.Context, headers http.Header, body []byte) bool {
	return v.Check(ctx, headers, body).OK
}

// Check is Verify with a rejection reason.
func (v *WebhookVerifier) Check(ctx context.Context, headers http.Header, body []byte) Result {
	secret, err := resolve(ctx, v.Secret)
	if err != nil {
		return Rejected(SchemeWebhook, "webhook secret not configured")
	}

	if static := headers.Get(HeaderWebhookSecret); static != "" {
		if subtle.ConstantTimeCompare([]byte(static), []byte(secret)) == 1 {
			return Authenticated(SchemeWebhook, Identity{})
		}
	}

	ts := headers.Get(HeaderWebhookTimestamp)
	sig := headers.Get(HeaderWebhookSignature)
	if ts == "" || sig == "" {
		if headers.Get(HeaderWebhookSecret) != "" {
			return Rejected(SchemeWebhook, "invalid signature")
		}
		return Rejected(SchemeWebhook, "missing webhook signature")
	}

	if v.MaxAge > 0 {
		at, ok := parseWebhookTimestamp(ts)
		if !ok {
			return Rejected(SchemeWebhook, "invalid webhook timestamp")
		}
		age := v.now().Sub(at)
		if age < 0 {
			age = -age
		}
		if age > v.MaxAge {
			return Rejected(SchemeWebhook, "webhook timestamp outside allowed window")
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	given, ok := decodeSignature(sig)
	if !ok || !hmac.Equal(given, expected) {
		return Rejected(SchemeWebhook, "invalid signature")
	}
	return Authenticated(SchemeWebhook, Identity{})
}

// Authenticate implements Authenticator. The body is restored for the handler.
func (v *WebhookVerifier) Authenticate(r *http.Request) Result {
	var body []byte
	if r.Body != nil {
		var err error
		if body, err = io.ReadAll(r.Body); err != nil {
			return Rejected(SchemeWebhook, "unreadable body")
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	return v.Check(r.Context(), r.Header, body)
}

func (v *WebhookVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// decodeSignature accepts base64 (either alphabet) or hex.
func decodeSignature(sig string) ([]byte, bool) {
	sig = strings.TrimSpace(sig)
	if b, err := base64.StdEncoding.DecodeString(sig); err == nil && len(b) == sha256.Size {
		return b, true
	}
	if b, err := DecodeBase64URL(sig); err == nil && len(b) == sha256.Size {
		return b, true
	}
	if b, err := hex.DecodeString(sig); err == nil && len(b) == sha256.Size {
		return b, true
	}
	return nil, false
}

// parseWebhookTimestamp accepts RFC 3339 or unix seconds.
func parseWebhookTimestamp(ts string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t, true
	}
	if n, err := strconv.ParseInt(ts, 10, 64); err == nil {
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}
