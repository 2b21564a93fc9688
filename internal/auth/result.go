// Package auth verifies inbound credentials: helpdesk JWTs, NIP-98 signed
// events, webhook HMAC signatures and operator tokens.
//
// Verifiers report expected failures as a Rejected Result carrying a reason
// string. They return errors only for programming mistakes.
package auth

import "github.com/golang-jwt/jwt/v5"

// Scheme names the credential scheme that produced a Result.
type Scheme string

// Credential schemes.
const (
	SchemeJWT      Scheme = "jwt"
	SchemeNIP98    Scheme = "nip98"
	SchemeWebhook  Scheme = "webhook"
	SchemeOperator Scheme = "operator"
)

// Claims are the helpdesk JWT claims, returned exactly as embedded in the token.
type Claims struct {
	Issuer    string           `json:"iss,omitempty"`
	IssuedAt  *jwt.NumericDate `json:"iat,omitempty"`
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`
	Email     string           `json:"email,omitempty"`
	Name      string           `json:"name,omitempty"`
}

// Identity is who a credential belongs to. JWT identities carry Email and
// Name, NIP-98 identities carry Pubkey.
type Identity struct {
	Email  string  `json:"email,omitempty"`
	Name   string  `json:"name,omitempty"`
	Pubkey string  `json:"pubkey,omitempty"`
	Claims *Claims `json:"-"`
}

// Actor returns the best label for audit records: the pubkey, else the
// email, else the name.
func (i Identity) Actor() string {
	switch {
	case i.Pubkey != "":
		return i.Pubkey
	case i.Email != "":
		return i.Email
	}
	return i.Name
}

// Result is the outcome of verifying one credential.
type Result struct {
	OK       bool
	Scheme   Scheme
	Identity Identity
	Reason   string
}

// Authenticated returns a successful Result.
func Authenticated(scheme Scheme, id Identity) Result {
	return Result{OK: true, Scheme: scheme, Identity: id}
}

// Rejected returns a failed Result with reason. Reasons never contain secret material.
func Rejected(scheme Scheme, reason string) Result {
	return Result{Scheme: scheme, Reason: reason}
}
