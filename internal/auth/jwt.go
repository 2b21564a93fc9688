package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/divinevideo/relay-admin/internal/credential"
)

// IssuedAtSkew is how far in the future a token's iat may be.
// Expiry is checked strictly.
const IssuedAtSkew = 60 * time.Second

// JWTVerifier checks HS256 helpdesk tokens against a shared secret.
type JWTVerifier struct {
	Secret credential.Credential
	Now    func() time.Time
}

// NewJWTVerifier returns a verifier for tokens signed with secret.
func NewJWTVerifier(secret credential.Credential) *JWTVerifier {
	return &JWTVerifier{Secret: secret, Now: time.Now}
}

// Verify checks an "Authorization: Bearer <token>" header value.
func (v *JWTVerifier) Verify(ctx context.Context, header string) Result {
	token, ok := bearerToken(header)
	if !ok {
		return Rejected(SchemeJWT, "missing bearer token")
	}
	return v.VerifyToken(ctx, token)
}

// VerifyToken checks a compact JWS. Format problems are reported before the
// signature is looked at, so a wrong secret always yields "invalid signature".
func (v *JWTVerifier) VerifyToken(ctx context.Context, token string) Result {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Rejected(SchemeJWT, "malformed token: expected 3 segments")
	}

	headerJSON, err := DecodeBase64URL(parts[0])
	if err != nil {
		return Rejected(SchemeJWT, "malformed token: header is not base64url")
	}
	var header map[string]any
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Rejected(SchemeJWT, "malformed token: header is not a JSON object")
	}

	payloadJSON, err := DecodeBase64URL(parts[1])
	if err != nil {
		return Rejected(SchemeJWT, "malformed token: payload is not base64url")
	}
	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Rejected(SchemeJWT, "malformed token: payload is not valid claims JSON")
	}
	if claims.ExpiresAt == nil {
		return Rejected(SchemeJWT, "malformed token: missing exp claim")
	}

	secret, err := resolve(ctx, v.Secret)
	if err != nil {
		return Rejected(SchemeJWT, "jwt secret not configured")
	}

	sig, err := DecodeBase64URL(parts[2])
	if err != nil {
		return Rejected(SchemeJWT, "invalid signature")
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, []byte(secret)); err != nil {
		return Rejected(SchemeJWT, "invalid signature")
	}

	// exp and iat carry whole seconds; compare at that granularity.
	now := v.now().Unix()
	if claims.ExpiresAt.Unix() < now {
		return Rejected(SchemeJWT, "token expired")
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Unix() > now+int64(IssuedAtSkew/time.Second) {
		return Rejected(SchemeJWT, "token issued in the future")
	}

	return Authenticated(SchemeJWT, Identity{
		Email:  claims.Email,
		Name:   claims.Name,
		Claims: &claims,
	})
}

// Authenticate implements Authenticator.
func (v *JWTVerifier) Authenticate(r *http.Request) Result {
	return v.Verify(r.Context(), r.Header.Get("Authorization"))
}

func (v *JWTVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func resolve(ctx context.Context, c credential.Credential) (string, error) {
	if c == nil {
		return "", credential.ErrNotConfigured
	}
	v, err := c.Resolve(ctx)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", errors.New("empty secret")
	}
	return v, nil
}
