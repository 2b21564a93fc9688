package helpdesk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/divinevideo/relay-admin/internal/credential"
)

// MobileTokenTTL is how long an issued messaging token stays valid.
const MobileTokenTTL = 10 * time.Minute

// MobileClaims are the messaging SDK's end-user claims. The external id is
// the user's hex pubkey so tickets follow the Nostr identity.
type MobileClaims struct {
	Scope      string `json:"scope"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// MobileIssuer signs messaging JWTs.
type MobileIssuer struct {
	Secret credential.Credential
	KeyID  string
	TTL    time.Duration
	Now    func() time.Time
}

// MobileToken is an issued token and its expiry.
type MobileToken struct {
	Token     string    `json:"jwt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issue signs a token for pubkey. name and email are optional.
func (m *MobileIssuer) Issue(ctx context.Context, pubkey, name, email string) (*MobileToken, error) {
	if m.Secret == nil || m.KeyID == "" {
		return nil, ErrNotConfigured
	}
	secret, err := m.Secret.Resolve(ctx)
	if err != nil {
		if errors.Is(err, credential.ErrNotConfigured) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("helpdesk: resolve mobile secret: %w", err)
	}

	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	ttl := m.TTL
	if ttl <= 0 {
		ttl = MobileTokenTTL
	}
	exp := now.Add(ttl).Truncate(time.Second)

	claims := MobileClaims{
		Scope:      "user",
		ExternalID: pubkey,
		Name:       name,
		Email:      email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = m.KeyID

	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("helpdesk: sign mobile token: %w", err)
	}
	return &MobileToken{Token: signed, ExpiresAt: exp}, nil
}
