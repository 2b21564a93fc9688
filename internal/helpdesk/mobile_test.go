package helpdesk

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinevideo/relay-admin/internal/credential"
)

func TestMobileIssuer_Issue(t *testing.T) {
	t.Parallel()

	now := time.Now().Truncate(time.Second)
	m := &MobileIssuer{
		Secret: credential.Literal("mobile-secret"),
		KeyID:  "app_123",
		Now:    func() time.Time { return now },
	}

	tok, err := m.Issue(context.Background(), hexA, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, now.Add(MobileTokenTTL), tok.ExpiresAt)

	var claims MobileClaims
	parsed, err := jwt.ParseWithClaims(tok.Token, &claims, func(t *jwt.Token) (any, error) {
		return []byte("mobile-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	assert.Equal(t, "app_123", parsed.Header["kid"])
	assert.Equal(t, "user", claims.Scope)
	assert.Equal(t, hexA, claims.ExternalID)
	assert.Equal(t, "alice", claims.Name)
	assert.Empty(t, claims.Email)
}

func TestMobileIssuer_NotConfigured(t *testing.T) {
	t.Parallel()

	_, err := (&MobileIssuer{KeyID: "k"}).Issue(context.Background(), hexA, "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = (&MobileIssuer{Secret: credential.Literal(""), KeyID: "k"}).Issue(context.Background(), hexA, "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = (&MobileIssuer{Secret: credential.Literal("s")}).Issue(context.Background(), hexA, "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
