// Package mockstore provides a configurable mock implementation of storage.Storage for testing.
//
// The MockStorage type uses function fields for each method, allowing tests to customize behavior
// as needed while providing sensible defaults for methods that aren't customized.
package mockstore

import (
	"context"
	"time"

	"github.com/divinevideo/relay-admin/internal/storage"
)

// MockStorage is a configurable mock implementation of storage.Storage.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a sensible default value.
type MockStorage struct {
	// Decision operations
	AddDecisionFunc              func(ctx context.Context, d *storage.Decision) (*storage.Decision, error)
	ListDecisionsFunc            func(ctx context.Context, filter storage.DecisionFilter) ([]*storage.Decision, error)
	GetDecisionsForTargetFunc    func(ctx context.Context, targetID string) ([]*storage.Decision, error)
	DeleteDecisionsForTargetFunc func(ctx context.Context, targetID string) (int64, error)

	// Secret operations
	SetSecretFunc    func(ctx context.Context, name, value string) error
	GetSecretFunc    func(ctx context.Context, name string) (string, error)
	DeleteSecretFunc func(ctx context.Context, name string) error

	// Lifecycle
	PingFunc  func(ctx context.Context) error
	CloseFunc func() error
}

// AddDecision records a decision. By default it echoes d back with ID 1.
func (m *MockStorage) AddDecision(ctx context.Context, d *storage.Decision) (*storage.Decision, error) {
	if m.AddDecisionFunc != nil {
		return m.AddDecisionFunc(ctx, d)
	}
	out := *d
	out.ID = 1
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	return &out, nil
}

// ListDecisions lists decisions matching filter.
func (m *MockStorage) ListDecisions(ctx context.Context, filter storage.DecisionFilter) ([]*storage.Decision, error) {
	if m.ListDecisionsFunc != nil {
		return m.ListDecisionsFunc(ctx, filter)
	}
	return []*storage.Decision{}, nil
}

// GetDecisionsForTarget lists decisions for one target.
func (m *MockStorage) GetDecisionsForTarget(ctx context.Context, targetID string) ([]*storage.Decision, error) {
	if m.GetDecisionsForTargetFunc != nil {
		return m.GetDecisionsForTargetFunc(ctx, targetID)
	}
	return []*storage.Decision{}, nil
}

// DeleteDecisionsForTarget removes decisions for one target.
func (m *MockStorage) DeleteDecisionsForTarget(ctx context.Context, targetID string) (int64, error) {
	if m.DeleteDecisionsForTargetFunc != nil {
		return m.DeleteDecisionsForTargetFunc(ctx, targetID)
	}
	return 0, nil
}

// SetSecret stores a secret.
func (m *MockStorage) SetSecret(ctx context.Context, name, value string) error {
	if m.SetSecretFunc != nil {
		return m.SetSecretFunc(ctx, name, value)
	}
	return nil
}

// GetSecret retrieves a secret.
func (m *MockStorage) GetSecret(ctx context.Context, name string) (string, error) {
	if m.GetSecretFunc != nil {
		return m.GetSecretFunc(ctx, name)
	}
	return "", storage.ErrNotFound
}

// DeleteSecret removes a secret.
func (m *MockStorage) DeleteSecret(ctx context.Context, name string) error {
	if m.DeleteSecretFunc != nil {
		return m.DeleteSecretFunc(ctx, name)
	}
	return nil
}

// Ping checks database connectivity.
func (m *MockStorage) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Close closes the storage.
func (m *MockStorage) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
