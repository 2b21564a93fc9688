// Package credential resolves configured secrets into usable key material.
//
// A configured secret is either an inline value or a reference into the
// encrypted secret store ("store:<name>"). Callers hold a Credential and call
// Resolve on every use; they never branch on which kind they were given.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// StorePrefix marks a configuration value as a reference into the secret store.
const StorePrefix = "store:"

// ErrNotConfigured is returned when a credential resolves to an empty value.
var ErrNotConfigured = errors.New("credential: not configured")

// Credential is a secret that can be resolved into its plaintext value.
type Credential interface {
	Resolve(ctx context.Context) (string, error)
}

// SecretStore looks up named secrets. storage.SQLiteStorage implements it.
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Literal is a secret given inline in configuration.
type Literal string

// Resolve returns the literal value, or ErrNotConfigured when it is empty.
func (l Literal) Resolve(_ context.Context) (string, error) {
	if l == "" {
		return "", ErrNotConfigured
	}
	return string(l), nil
}

// String keeps the secret out of fmt and slog output.
func (l Literal) String() string {
	if l == "" {
		return ""
	}
	return "[REDACTED]"
}

// StoreRef is a secret held in a SecretStore under Name.
type StoreRef struct {
	Store SecretStore
	Name  string
}

// Resolve looks the secret up in the store on every call so rotated values
// are picked up without a restart.
func (r StoreRef) Resolve(ctx context.Context) (string, error) {
	if r.Store == nil || r.Name == "" {
		return "", ErrNotConfigured
	}
	v, err := r.Store.GetSecret(ctx, r.Name)
	if err != nil {
		return "", fmt.Errorf("credential: resolve %q: %w", r.Name, err)
	}
	if v == "" {
		return "", ErrNotConfigured
	}
	return v, nil
}

// String names the reference without revealing the value.
func (r StoreRef) String() string {
	return StorePrefix + r.Name
}

// Parse turns a raw configuration value into a Credential.
// Values of the form "store:<name>" resolve through store; everything else is a Literal.
func Parse(raw string, store SecretStore) Credential {
	raw = strings.TrimSpace(raw)
	if name, ok := strings.CutPrefix(raw, StorePrefix); ok {
		return StoreRef{Store: store, Name: strings.TrimSpace(name)}
	}
	return Literal(raw)
}

// IsConfigured reports whether c resolves to a non-empty value.
func IsConfigured(ctx context.Context, c Credential) bool {
	if c == nil {
		return false
	}
	_, err := c.Resolve(ctx)
	return err == nil
}
