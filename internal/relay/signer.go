package relay

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/divinevideo/relay-admin/internal/credential"
)

// Signer signs events with a key resolved from a Credential on every use.
type Signer struct {
	key credential.Credential
}

// NewSigner returns a Signer for key, which resolves to hex or nsec.
func NewSigner(key credential.Credential) *Signer {
	return &Signer{key: key}
}

func (s *Signer) secretKey(ctx context.Context) (string, error) {
	if s == nil || s.key == nil {
		return "", ErrNoSigningKey
	}
	raw, err := s.key.Resolve(ctx)
	if err != nil {
		if errors.Is(err, credential.ErrNotConfigured) {
			return "", ErrNoSigningKey
		}
		return "", fmt.Errorf("relay: resolve signing key: %w", err)
	}
	return parseSecretKey(raw)
}

func parseSecretKey(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "nsec1") {
		prefix, v, err := nip19.Decode(raw)
		if err != nil || prefix != "nsec" {
			return "", ErrInvalidSigningKey
		}
		sk, ok := v.(string)
		if !ok {
			return "", ErrInvalidSigningKey
		}
		raw = sk
	}
	if b, err := hex.DecodeString(raw); err != nil || len(b) != 32 {
		return "", ErrInvalidSigningKey
	}
	return strings.ToLower(raw), nil
}

// Sign fills PubKey, ID and Sig. CreatedAt is set to now when zero.
func (s *Signer) Sign(ctx context.Context, ev *nostr.Event) error {
	sk, err := s.secretKey(ctx)
	if err != nil {
		return err
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = nostr.Now()
	}
	if ev.Tags == nil {
		ev.Tags = nostr.Tags{}
	}
	if err := ev.Sign(sk); err != nil {
		return fmt.Errorf("relay: sign event: %w", err)
	}
	return nil
}

// PublicKey returns the hex public key of the signing key.
func (s *Signer) PublicKey(ctx context.Context) (string, error) {
	sk, err := s.secretKey(ctx)
	if err != nil {
		return "", err
	}
	return nostr.GetPublicKey(sk)
}
