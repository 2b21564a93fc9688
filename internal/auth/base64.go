package auth

import (
	"encoding/base64"
	"strings"
)

// DecodeBase64URL decodes base64url with or without padding. Standard
// alphabet characters ('+' and '/') are accepted in place of '-' and '_'.
func DecodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}

// EncodeBase64URL encodes b as unpadded base64url.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
