package auth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// KindHTTPAuth is the NIP-98 HTTP auth event kind.
const KindHTTPAuth = 27235

// NIP98Window bounds |created_at - now| for NIP-98 events.
const NIP98Window = 60 * time.Second

// NIP98Verifier checks "Authorization: Nostr <base64 event>" credentials.
type NIP98Verifier struct {
	// AllowedPubkeys restricts accepted signers when non-empty.
	AllowedPubkeys map[string]bool
	// PublicBaseURL, when set, replaces scheme and host of the request URL
	// the u tag is compared against. Needed behind TLS-terminating proxies.
	PublicBaseURL string
	Now           func() time.Time
}

// NewNIP98Verifier returns a verifier accepting only the given pubkeys, or any
// pubkey when allowed is empty.
func NewNIP98Verifier(allowed []string, publicBaseURL string) *NIP98Verifier {
	v := &NIP98Verifier{PublicBaseURL: strings.TrimRight(publicBaseURL, "/"), Now: time.Now}
	if len(allowed) > 0 {
		v.AllowedPubkeys = make(map[string]bool, len(allowed))
		for _, pk := range allowed {
			v.AllowedPubkeys[strings.ToLower(pk)] = true
		}
	}
	return v
}

// Verify checks header against the exact request URL and method.
func (v *NIP98Verifier) Verify(ctx context.Context, header, requestURL, method string) Result {
	res, _ := v.verify(header, requestURL, method)
	return res
}

func (v *NIP98Verifier) verify(header, requestURL, method string) (Result, *nostr.Event) {
	scheme, encoded, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Nostr") {
		return Rejected(SchemeNIP98, "malformed event"), nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		if raw, err = DecodeBase64URL(strings.TrimSpace(encoded)); err != nil {
			return Rejected(SchemeNIP98, "malformed event"), nil
		}
	}

	var ev nostr.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Rejected(SchemeNIP98, "malformed event"), nil
	}

	if ev.Kind != KindHTTPAuth {
		return Rejected(SchemeNIP98, "wrong event kind"), nil
	}

	if !ev.CheckID() {
		return Rejected(SchemeNIP98, "invalid signature"), nil
	}
	if sigOK, err := ev.CheckSignature(); err != nil || !sigOK {
		return Rejected(SchemeNIP98, "invalid signature"), nil
	}

	delta := v.now().Sub(ev.CreatedAt.Time())
	if delta < 0 {
		delta = -delta
	}
	if delta > NIP98Window {
		return Rejected(SchemeNIP98, "event timestamp outside allowed window"), nil
	}

	if tagValue(ev.Tags, "u") != requestURL {
		return Rejected(SchemeNIP98, "url mismatch"), nil
	}
	if !strings.EqualFold(tagValue(ev.Tags, "method"), method) {
		return Rejected(SchemeNIP98, "method mismatch"), nil
	}

	if len(v.AllowedPubkeys) > 0 && !v.AllowedPubkeys[strings.ToLower(ev.PubKey)] {
		return Rejected(SchemeNIP98, "pubkey not authorized"), nil
	}

	return Authenticated(SchemeNIP98, Identity{Pubkey: ev.PubKey}), &ev
}

// Authenticate implements Authenticator. When the event carries a payload
// tag the request body must hash to it.
func (v *NIP98Verifier) Authenticate(r *http.Request) Result {
	res, ev := v.verify(r.Header.Get("Authorization"), RequestURL(r, v.PublicBaseURL), r.Method)
	if !res.OK {
		return res
	}

	want := tagValue(ev.Tags, "payload")
	if want == "" || r.Body == nil {
		return res
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return Rejected(SchemeNIP98, "unreadable body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), want) {
		return Rejected(SchemeNIP98, "payload mismatch")
	}
	return res
}

func (v *NIP98Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// RequestURL reconstructs the absolute URL a client addressed.
// publicBaseURL wins when set; otherwise X-Forwarded-Proto and TLS decide the scheme.
func RequestURL(r *http.Request, publicBaseURL string) string {
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/") + r.URL.RequestURI()
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme, _, _ = strings.Cut(proto, ",")
		scheme = strings.TrimSpace(scheme)
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// tagValue returns the first value of the first tag named key.
func tagValue(tags nostr.Tags, key string) string {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == key {
			return tag[1]
		}
	}
	return ""
}
