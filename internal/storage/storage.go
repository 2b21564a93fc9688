// Package storage provides SQLite persistence for moderation decisions and encrypted secrets.
package storage

import (
	"context"
)

// Storage defines the persistence operations used by the control plane.
type Storage interface {
	// Moderation decisions (append-only audit trail)
	AddDecision(ctx context.Context, d *Decision) (*Decision, error)
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]*Decision, error)
	GetDecisionsForTarget(ctx context.Context, targetID string) ([]*Decision, error)
	DeleteDecisionsForTarget(ctx context.Context, targetID string) (int64, error)

	// Secrets
	SetSecret(ctx context.Context, name, value string) error
	GetSecret(ctx context.Context, name string) (string, error)
	DeleteSecret(ctx context.Context, name string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
