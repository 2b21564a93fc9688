package relay

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNoSigningKey      = errors.New("relay: signing key not configured")
	ErrInvalidSigningKey = errors.New("relay: signing key is not a valid hex or nsec secret key")
	ErrPublishTimeout    = errors.New("relay: timed out waiting for OK")
	ErrQueryTimeout      = errors.New("relay: timed out waiting for EOSE")
	ErrConnectionClosed  = errors.New("relay: connection closed before acknowledgement")
	ErrInvalidResponse   = errors.New("relay: invalid response")
)

// RPCError is a failed management call. HTTP failures carry StatusCode,
// Status and Body; RPC-level failures carry the relay's error Message.
type RPCError struct {
	Method     string
	StatusCode int
	Status     string
	Body       string
	Message    string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("relay rpc %s: %s", e.Method, e.Message)
	}
	return fmt.Sprintf("relay rpc %s: %s: %s", e.Method, e.Status, e.Body)
}

// RejectedError is returned when the relay answers OK with ok=false.
type RejectedError struct {
	EventID string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("relay rejected event %s: %s", e.EventID, e.Message)
}

// ClosedError is returned when the relay ends a subscription with CLOSED.
type ClosedError struct {
	SubscriptionID string
	Message        string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("relay closed subscription %s: %s", e.SubscriptionID, e.Message)
}
