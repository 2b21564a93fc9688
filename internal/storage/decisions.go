package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const decisionColumns = "id, target_type, target_id, action, reason, moderator_pubkey, report_id, created_at"

// AddDecision appends a moderation decision and returns it with ID and CreatedAt set.
func (s *SQLiteStorage) AddDecision(ctx context.Context, d *Decision) (*Decision, error) {
	if d == nil || d.TargetType == "" || d.TargetID == "" || d.Action == "" {
		return nil, ErrInvalidDecision
	}

	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO moderation_decisions (target_type, target_id, action, reason, moderator_pubkey, report_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		d.TargetType, d.TargetID, d.Action, d.Reason, nullString(d.ModeratorPubkey), nullString(d.ReportID), created)
	if err != nil {
		return nil, fmt.Errorf("failed to insert decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get insert ID: %w", err)
	}

	out := *d
	out.ID = id
	out.CreatedAt = created
	return &out, nil
}

// ListDecisions returns decisions matching filter, newest first.
// Returns an empty slice (not nil) when nothing matches.
func (s *SQLiteStorage) ListDecisions(ctx context.Context, filter DecisionFilter) ([]*Decision, error) {
	var (
		where []string
		args  []any
	)
	if filter.TargetType != "" {
		where = append(where, "target_type = ?")
		args = append(args, filter.TargetType)
	}
	if filter.TargetID != "" {
		where = append(where, "target_id = ?")
		args = append(args, filter.TargetID)
	}
	if filter.ReportID != "" {
		where = append(where, "report_id = ?")
		args = append(args, filter.ReportID)
	}
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filter.Action)
	}

	query := "SELECT " + decisionColumns + " FROM moderation_decisions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	decisions := make([]*Decision, 0)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decisions: %w", err)
	}

	return decisions, nil
}

// GetDecisionsForTarget returns every decision recorded against targetID, whatever its type.
func (s *SQLiteStorage) GetDecisionsForTarget(ctx context.Context, targetID string) ([]*Decision, error) {
	return s.ListDecisions(ctx, DecisionFilter{TargetID: targetID})
}

// DeleteDecisionsForTarget removes all decisions for targetID and returns how many were removed.
// This is bookkeeping only; it does not reverse anything on the relay.
func (s *SQLiteStorage) DeleteDecisionsForTarget(ctx context.Context, targetID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM moderation_decisions WHERE target_id = ?", targetID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete decisions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func scanDecision(rows *sql.Rows) (*Decision, error) {
	var (
		d         Decision
		moderator sql.NullString
		reportID  sql.NullString
	)
	if err := rows.Scan(&d.ID, &d.TargetType, &d.TargetID, &d.Action, &d.Reason, &moderator, &reportID, &d.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan decision row: %w", err)
	}
	d.ModeratorPubkey = moderator.String
	d.ReportID = reportID.String
	return &d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
