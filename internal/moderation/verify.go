package moderation

import (
	"context"
	"errors"
	"strings"

	"github.com/divinevideo/relay-admin/internal/media"
	"github.com/divinevideo/relay-admin/internal/metrics"
	"github.com/divinevideo/relay-admin/internal/storage"
)

// Observed and expected states reported by verification.
const (
	StateBanned    = "banned"
	StateNotBanned = "not_banned"
	StatePresent   = "present"
	StateAbsent    = "absent"
	StateBlocked   = "blocked"
	StateUnblocked = "unblocked"
	StateUnknown   = "unknown"
)

// Verification checks.
const (
	CheckBanList     = "ban_list"
	CheckEventExists = "event_exists"
	CheckMediaStatus = "media_status"
)

type expectation struct {
	check    string
	target   string
	expected string
}

// verifyResult waits for the relay to settle, then checks every applied
// effect of res in order. It never fails: errors become warnings.
func (o *Orchestrator) verifyResult(ctx context.Context, res *Result) *Verification {
	want := expectationsFor(res)
	if len(want) == 0 {
		return &Verification{Status: VerificationSkipped, Outcomes: []VerificationOutcome{}}
	}

	if err := o.sleep(ctx, o.cfg.VerifyDelay); err != nil {
		metrics.RecordVerification("error")
		return &Verification{
			Status: VerificationWarning,
			Outcomes: []VerificationOutcome{{
				Target:   res.Target,
				Check:    "delay",
				Observed: StateUnknown,
				Error:    "verification cancelled: " + err.Error(),
			}},
		}
	}
	return o.check(ctx, want)
}

// VerifyTarget checks the current state of a target against its most recent
// state-changing audit decision. Labels and other bookkeeping rows are
// skipped; a target without a state-changing decision is expected to be
// unmoderated.
func (o *Orchestrator) VerifyTarget(ctx context.Context, targetType, targetID string) (*Verification, error) {
	targetID = strings.ToLower(strings.TrimSpace(targetID))
	var decisions []*storage.Decision
	if o.cfg.Audit != nil {
		var err error
		if decisions, err = o.cfg.Audit.GetDecisionsForTarget(ctx, targetID); err != nil {
			return nil, err
		}
	}

	action := ""
	for _, d := range decisions {
		if targetType != "" && d.TargetType != targetType {
			continue
		}
		if targetType == "" {
			targetType = d.TargetType
		}
		if changesState(targetType, d.Action) {
			action = d.Action
			break
		}
	}
	if targetType == "" {
		targetType = storage.TargetPubkey
	}
	return o.check(ctx, []expectation{expectationForAction(targetType, action, targetID)}), nil
}

// changesState reports whether action alters what verification observes for
// a target of targetType.
func changesState(targetType, action string) bool {
	switch Kind(action) {
	case KindBanPubkey, KindUnbanPubkey:
		return targetType == storage.TargetPubkey
	case KindDeleteEvent:
		return targetType == storage.TargetEvent
	case KindBlockMedia, KindUnblockMedia:
		return targetType == storage.TargetMedia
	}
	return false
}

func expectationForAction(targetType, action, target string) expectation {
	switch targetType {
	case storage.TargetPubkey:
		e := expectation{check: CheckBanList, target: target, expected: StateNotBanned}
		if action == string(KindBanPubkey) {
			e.expected = StateBanned
		}
		return e
	case storage.TargetMedia:
		e := expectation{check: CheckMediaStatus, target: target, expected: StateUnblocked}
		if action == string(KindBlockMedia) {
			e.expected = StateBlocked
		}
		return e
	default:
		e := expectation{check: CheckEventExists, target: target, expected: StatePresent}
		if action == string(KindDeleteEvent) {
			e.expected = StateAbsent
		}
		return e
	}
}

func expectationsFor(res *Result) []expectation {
	var out []expectation
	p := res.Primary
	if p.OK {
		switch res.Kind {
		case KindLabel:
			if p.EventID != "" {
				out = append(out, expectation{check: CheckEventExists, target: p.EventID, expected: StatePresent})
			}
		default:
			out = append(out, expectationForAction(p.TargetType, p.Action, p.Target))
		}
	}
	for _, s := range res.SubActions {
		if s.OK {
			out = append(out, expectationForAction(s.TargetType, s.Action, s.Target))
		}
	}
	return out
}

// check runs the expectations sequentially. The ban list is fetched at most once.
func (o *Orchestrator) check(ctx context.Context, want []expectation) *Verification {
	v := &Verification{Status: VerificationVerified, Outcomes: make([]VerificationOutcome, 0, len(want))}

	var banned map[string]bool
	var banErr error
	for _, e := range want {
		out := VerificationOutcome{Target: e.target, Check: e.check, Expected: e.expected, Observed: StateUnknown}

		var err error
		switch e.check {
		case CheckBanList:
			if banned == nil && banErr == nil {
				banned, banErr = o.banList(ctx)
			}
			if err = banErr; err == nil {
				out.Observed = StateNotBanned
				if banned[e.target] {
					out.Observed = StateBanned
				}
			}
		case CheckEventExists:
			var exists bool
			if o.cfg.Querier == nil {
				err = ErrNotConfigured
			} else if exists, err = o.cfg.Querier.EventExists(ctx, e.target); err == nil {
				out.Observed = StateAbsent
				if exists {
					out.Observed = StatePresent
				}
			}
		case CheckMediaStatus:
			var action string
			if o.cfg.Media == nil {
				err = ErrNotConfigured
			} else if action, err = o.cfg.Media.Status(ctx, e.target); err == nil || errors.Is(err, media.ErrNotFound) {
				err = nil
				out.Observed = StateUnblocked
				if media.IsBlocked(action) {
					out.Observed = StateBlocked
				}
			}
		}

		switch {
		case err != nil:
			out.Error = err.Error()
			metrics.RecordVerification("error")
		case out.Observed == out.Expected:
			out.Matched = true
			metrics.RecordVerification("matched")
		default:
			metrics.RecordVerification("mismatch")
		}
		if !out.Matched {
			v.Status = VerificationWarning
			o.logger.Warn("verification mismatch",
				"check", out.Check, "target", out.Target,
				"expected", out.Expected, "observed", out.Observed, "error", out.Error)
		}
		v.Outcomes = append(v.Outcomes, out)
	}
	return v
}

func (o *Orchestrator) banList(ctx context.Context) (map[string]bool, error) {
	list, err := o.cfg.Relay.ListBannedPubkeys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(list))
	for _, b := range list {
		out[strings.ToLower(b.Pubkey)] = true
	}
	return out, nil
}
