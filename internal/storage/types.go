package storage

import "time"

// Target types recorded on a Decision.
const (
	TargetPubkey = "pubkey"
	TargetEvent  = "event"
	TargetMedia  = "media"
)

// Decision is one executed moderation sub-action.
// Rows are never updated; deleting every row for a target is the reopen operation.
type Decision struct {
	ID              int64     `json:"id"`
	TargetType      string    `json:"target_type"`
	TargetID        string    `json:"target_id"`
	Action          string    `json:"action"`
	Reason          string    `json:"reason"`
	ModeratorPubkey string    `json:"moderator_pubkey,omitempty"`
	ReportID        string    `json:"report_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// DecisionFilter narrows ListDecisions. Zero values mean "any".
type DecisionFilter struct {
	TargetType string
	TargetID   string
	ReportID   string
	Action     string
	Limit      int
}
