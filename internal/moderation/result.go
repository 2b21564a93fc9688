package moderation

import (
	"errors"
	"fmt"
)

// Status is the dispatch outcome of an intent.
type Status string

// Dispatch states. An intent moves pending → executing → one of the terminal
// three; only the terminal state is ever returned.
const (
	StatusPending         Status = "pending"
	StatusExecuting       Status = "executing"
	StatusSucceeded       Status = "succeeded"
	StatusPartiallyFailed Status = "partially_failed"
	StatusFailed          Status = "failed"
)

// VerificationStatus is the post-dispatch check outcome.
type VerificationStatus string

// Verification states.
const (
	VerificationVerifying VerificationStatus = "verifying"
	VerificationVerified  VerificationStatus = "verified"
	VerificationWarning   VerificationStatus = "verification_warning"
	VerificationSkipped   VerificationStatus = "skipped"
)

// Sub-action names recorded in results and audit decisions.
const (
	ActionQueryEvents = "query_events"
	ActionBlockMedia  = string(KindBlockMedia)
	ActionDeleteEvent = string(KindDeleteEvent)
)

// SubAction is one relay or media-service effect attempted for an intent.
type SubAction struct {
	Action     string `json:"action"`
	TargetType string `json:"targetType"`
	Target     string `json:"target"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	Audited    bool   `json:"audited"`
	EventID    string `json:"eventId,omitempty"`

	err error
}

// Err returns the underlying failure, if any.
func (s SubAction) Err() error { return s.err }

func (s *SubAction) fail(err error) {
	s.OK = false
	s.err = err
	s.Error = err.Error()
}

// VerificationOutcome compares what the relay or media service reports with
// what the action should have produced.
type VerificationOutcome struct {
	Target   string `json:"target"`
	Check    string `json:"check"`
	Expected string `json:"expected"`
	Observed string `json:"observed"`
	Matched  bool   `json:"matched"`
	Error    string `json:"error,omitempty"`
}

// Verification is the advisory post-dispatch check.
type Verification struct {
	Status   VerificationStatus    `json:"status"`
	Outcomes []VerificationOutcome `json:"outcomes"`
}

// Result is the full outcome of Execute.
type Result struct {
	Kind          Kind          `json:"kind"`
	Target        string        `json:"target"`
	Status        Status        `json:"status"`
	Primary       SubAction     `json:"primary"`
	SubActions    []SubAction   `json:"subActions"`
	EventsDeleted int           `json:"eventsDeleted"`
	MediaBlocked  int           `json:"mediaBlocked"`
	Warnings      []string      `json:"warnings"`
	Verification  *Verification `json:"verification,omitempty"`
}

// DispatchError is a failure of an intent's primary action. Nothing was
// applied and nothing was audited.
type DispatchError struct {
	Kind Kind
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ErrNotConfigured is returned when an intent needs a collaborator that was
// not wired, e.g. media intents without a moderation service.
var ErrNotConfigured = errors.New("moderation: dependency not configured")
