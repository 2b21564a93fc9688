package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// OperatorVerifier authenticates dashboard operators. It accepts NIP-98 from
// an allow-listed moderator pubkey, or a bearer token matching TokenHash.
type OperatorVerifier struct {
	// TokenHash is a bcrypt hash. Empty disables bearer tokens.
	TokenHash string
	NIP98     *NIP98Verifier
}

// Authenticate implements Authenticator.
func (v *OperatorVerifier) Authenticate(r *http.Request) Result {
	header := r.Header.Get("Authorization")
	scheme, _, _ := strings.Cut(strings.TrimSpace(header), " ")

	switch {
	case strings.EqualFold(scheme, "Nostr"):
		if v.NIP98 == nil || len(v.NIP98.AllowedPubkeys) == 0 {
			return Rejected(SchemeOperator, "no moderator pubkeys configured")
		}
		res := v.NIP98.Authenticate(r)
		res.Scheme = SchemeOperator
		return res

	case strings.EqualFold(scheme, "Bearer"):
		if v.TokenHash == "" {
			return Rejected(SchemeOperator, "operator token not configured")
		}
		token, _ := bearerToken(header)
		if err := bcrypt.CompareHashAndPassword([]byte(v.TokenHash), []byte(token)); err != nil {
			return Rejected(SchemeOperator, "invalid operator token")
		}
		return Authenticated(SchemeOperator, Identity{Name: "operator"})
	}

	return Rejected(SchemeOperator, "missing credentials")
}
