package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1_760_000_000, 0)

func fixedClock() time.Time { return fixedNow }

func signJWT(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

type nip98Opts struct {
	kind      int
	createdAt time.Time
	url       string
	method    string
	payload   string
}

func nostrHeader(t *testing.T, sk string, o nip98Opts) string {
	t.Helper()
	if o.kind == 0 {
		o.kind = KindHTTPAuth
	}
	tags := nostr.Tags{{"u", o.url}, {"method", o.method}}
	if o.payload != "" {
		tags = append(tags, nostr.Tag{"payload", o.payload})
	}
	ev := nostr.Event{
		Kind:      o.kind,
		CreatedAt: nostr.Timestamp(o.createdAt.Unix()),
		Tags:      tags,
	}
	require.NoError(t, ev.Sign(sk))

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return "Nostr " + base64.StdEncoding.EncodeToString(raw)
}
