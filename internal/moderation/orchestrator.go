package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/divinevideo/relay-admin/internal/helpdesk"
	"github.com/divinevideo/relay-admin/internal/metrics"
	"github.com/divinevideo/relay-admin/internal/relay"
	"github.com/divinevideo/relay-admin/internal/storage"
)

// RelayAdmin is the subset of the NIP-86 client the orchestrator uses.
type RelayAdmin interface {
	BanPubkey(ctx context.Context, pubkey, reason string) error
	AllowPubkey(ctx context.Context, pubkey, reason string) error
	ListBannedPubkeys(ctx context.Context) ([]relay.BannedPubkey, error)
}

// EventSigner signs events published on the operator's behalf.
type EventSigner interface {
	Sign(ctx context.Context, ev *nostr.Event) error
}

// EventPublisher sends signed events and waits for the relay's OK.
type EventPublisher interface {
	Publish(ctx context.Context, ev *nostr.Event) (*relay.Ack, error)
}

// EventQuerier reads relay state for fan-out and verification.
type EventQuerier interface {
	EventExists(ctx context.Context, id string) (bool, error)
	RecentEventIDs(ctx context.Context, pubkey string, limit int) ([]string, error)
}

// MediaModerator changes and reads media block state.
type MediaModerator interface {
	Block(ctx context.Context, sha256, reason string) error
	Unblock(ctx context.Context, sha256, reason string) error
	Status(ctx context.Context, sha256 string) (string, error)
}

// AuditStore persists moderation decisions.
type AuditStore interface {
	AddDecision(ctx context.Context, d *storage.Decision) (*storage.Decision, error)
	GetDecisionsForTarget(ctx context.Context, targetID string) ([]*storage.Decision, error)
	DeleteDecisionsForTarget(ctx context.Context, targetID string) (int64, error)
}

// NoteQueue accepts best-effort helpdesk notes.
type NoteQueue interface {
	Enqueue(n helpdesk.Note) error
}

// Config holds the orchestrator's collaborators and tuning.
// Media and Notes may be nil.
type Config struct {
	Relay     RelayAdmin
	Signer    EventSigner
	Publisher EventPublisher
	Querier   EventQuerier
	Media     MediaModerator
	Audit     AuditStore
	Notes     NoteQueue
	Logger    *slog.Logger

	VerifyDelay       time.Duration
	Concurrency       int
	Rate              float64
	RecentEventsLimit int
}

// Orchestrator executes moderation intents.
type Orchestrator struct {
	cfg     Config
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	limiter *rate.Limiter
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RecentEventsLimit < 1 {
		cfg.RecentEventsLimit = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	return &Orchestrator{
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
		limiter: rate.NewLimiter(limit, cfg.Concurrency),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute dispatches the intent, audits every effect that landed, runs
// verification and queues a helpdesk note when the intent carries a ticket.
//
// A failed primary action returns a *DispatchError and no fan-out happens.
// Once the primary action has succeeded the remaining work runs detached from
// ctx's cancellation, so a client disconnect cannot strand effects without
// their audit rows. Verification still honours ctx.
func (o *Orchestrator) Execute(ctx context.Context, in Intent) (*Result, error) {
	res := &Result{
		Kind:       in.Kind(),
		Target:     in.Target(),
		Status:     StatusExecuting,
		SubActions: []SubAction{},
		Warnings:   []string{},
	}
	log := o.logger.With("kind", in.Kind(), "target", in.Target(), "report_id", in.ReportID())

	res.Primary = o.dispatch(ctx, in)
	if !res.Primary.OK {
		res.Status = StatusFailed
		metrics.RecordModeration(string(in.Kind()), string(res.Status))
		log.Warn("moderation action failed", "error", res.Primary.Error)
		return res, &DispatchError{Kind: in.Kind(), Err: res.Primary.err}
	}

	work := context.WithoutCancel(ctx)
	o.audit(work, in, &res.Primary, res, log)

	if in.Kind() == KindBanPubkey {
		o.fanOut(work, in, res, log)
	}

	res.Status = StatusSucceeded
	for _, s := range res.SubActions {
		if !s.OK {
			res.Status = StatusPartiallyFailed
			break
		}
	}
	metrics.RecordModeration(string(in.Kind()), string(res.Status))
	log.Info("moderation action applied",
		"status", res.Status,
		"events_deleted", res.EventsDeleted,
		"media_blocked", res.MediaBlocked,
	)

	res.Verification = o.verifyResult(ctx, res)

	if in.TicketID() != "" && o.cfg.Notes != nil {
		if err := o.cfg.Notes.Enqueue(helpdesk.Note{TicketID: in.TicketID(), Body: Summary(in, res)}); err != nil {
			res.Warnings = append(res.Warnings, "helpdesk note not queued: "+err.Error())
			log.Warn("helpdesk note not queued", "ticket_id", in.TicketID(), "error", err)
		}
	}
	return res, nil
}

// dispatch performs the intent's primary action.
func (o *Orchestrator) dispatch(ctx context.Context, in Intent) SubAction {
	s := SubAction{
		Action:     string(in.Kind()),
		TargetType: in.Kind().TargetType(),
		Target:     in.Target(),
		OK:         true,
	}
	if in.Kind() == KindLabel && in.Options().LabelPubkey {
		s.TargetType = storage.TargetPubkey
	}

	var err error
	switch in.Kind() {
	case KindBanPubkey:
		err = o.cfg.Relay.BanPubkey(ctx, in.Target(), in.Reason())
	case KindUnbanPubkey:
		err = o.cfg.Relay.AllowPubkey(ctx, in.Target(), in.Reason())
	case KindDeleteEvent:
		s.EventID, err = o.deleteEvent(ctx, in.Target(), in.Reason())
	case KindLabel:
		s.EventID, err = o.publishLabel(ctx, in)
	case KindBlockMedia:
		err = o.blockMedia(ctx, in.Target(), in.Reason())
	case KindUnblockMedia:
		if o.cfg.Media == nil {
			err = ErrNotConfigured
		} else {
			err = o.cfg.Media.Unblock(ctx, in.Target(), in.Reason())
		}
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalidIntent, in.Kind())
	}
	if err != nil {
		s.fail(err)
	}
	return s
}

// deleteEvent publishes a kind 5 deletion for one event and returns its id.
func (o *Orchestrator) deleteEvent(ctx context.Context, id, reason string) (string, error) {
	ev := relay.DeletionEvent([]string{id}, reason)
	return o.signAndPublish(ctx, ev)
}

func (o *Orchestrator) publishLabel(ctx context.Context, in Intent) (string, error) {
	opts := in.Options()
	target := relay.LabelTarget{EventID: in.Target()}
	if opts.LabelPubkey {
		target = relay.LabelTarget{Pubkey: in.Target()}
	}
	ev := relay.LabelEvent(target, opts.LabelNamespace, opts.Label, in.Reason())
	return o.signAndPublish(ctx, ev)
}

func (o *Orchestrator) signAndPublish(ctx context.Context, ev *nostr.Event) (string, error) {
	if o.cfg.Signer == nil || o.cfg.Publisher == nil {
		return "", ErrNotConfigured
	}
	ev.CreatedAt = nostr.Now()
	if err := o.cfg.Signer.Sign(ctx, ev); err != nil {
		return "", err
	}
	if _, err := o.cfg.Publisher.Publish(ctx, ev); err != nil {
		return ev.ID, err
	}
	return ev.ID, nil
}

func (o *Orchestrator) blockMedia(ctx context.Context, hash, reason string) error {
	if o.cfg.Media == nil {
		return ErrNotConfigured
	}
	return o.cfg.Media.Block(ctx, hash, reason)
}

// fanOut runs the ban's delete and block sub-actions. Each runs to completion
// independently; failures are recorded per sub-action and never cancel the rest.
func (o *Orchestrator) fanOut(ctx context.Context, in Intent, res *Result, log *slog.Logger) {
	eventIDs := in.EventIDs()
	if in.DeleteEvents() && len(eventIDs) == 0 {
		ids, err := o.recentEvents(ctx, in.Target())
		if err != nil {
			q := SubAction{Action: ActionQueryEvents, TargetType: storage.TargetPubkey, Target: in.Target()}
			q.fail(err)
			res.SubActions = append(res.SubActions, q)
			log.Warn("could not list events to delete", "error", err)
		}
		eventIDs = ids
	}

	tasks := make([]SubAction, 0, len(eventIDs)+len(in.MediaHashes()))
	for _, id := range eventIDs {
		tasks = append(tasks, SubAction{Action: ActionDeleteEvent, TargetType: storage.TargetEvent, Target: id})
	}
	for _, h := range in.MediaHashes() {
		tasks = append(tasks, SubAction{Action: ActionBlockMedia, TargetType: storage.TargetMedia, Target: h})
	}
	if len(tasks) == 0 {
		return
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i := range tasks {
		g.Go(func() error {
			s := &tasks[i]
			if err := o.limiter.Wait(ctx); err != nil {
				s.fail(err)
				return nil
			}

			var err error
			switch s.Action {
			case ActionDeleteEvent:
				s.EventID, err = o.deleteEvent(ctx, s.Target, in.Reason())
			case ActionBlockMedia:
				err = o.blockMedia(ctx, s.Target, in.Reason())
			}
			if err != nil {
				s.fail(err)
				log.Warn("sub-action failed", "action", s.Action, "sub_target", s.Target, "error", err)
				return nil
			}
			s.OK = true

			mu.Lock()
			defer mu.Unlock()
			o.audit(ctx, in, s, res, log)
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range tasks {
		res.SubActions = append(res.SubActions, s)
		if !s.OK {
			continue
		}
		switch s.Action {
		case ActionDeleteEvent:
			res.EventsDeleted++
		case ActionBlockMedia:
			res.MediaBlocked++
		}
	}
}

func (o *Orchestrator) recentEvents(ctx context.Context, pubkey string) ([]string, error) {
	if o.cfg.Querier == nil {
		return nil, ErrNotConfigured
	}
	return o.cfg.Querier.RecentEventIDs(ctx, pubkey, o.cfg.RecentEventsLimit)
}

// audit records one applied sub-action. A failed write is a warning: the
// effect has already happened and must still be reported as applied.
// Callers running concurrently must serialise calls.
func (o *Orchestrator) audit(ctx context.Context, in Intent, s *SubAction, res *Result, log *slog.Logger) {
	if o.cfg.Audit == nil {
		return
	}
	_, err := o.cfg.Audit.AddDecision(ctx, &storage.Decision{
		TargetType:      s.TargetType,
		TargetID:        s.Target,
		Action:          s.Action,
		Reason:          in.Reason(),
		ModeratorPubkey: in.Actor(),
		ReportID:        in.ReportID(),
	})
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("audit record for %s %s not written: %v", s.Action, s.Target, err))
		log.Error("audit write failed", "action", s.Action, "sub_target", s.Target, "error", err)
		return
	}
	s.Audited = true
}

// Reopen deletes the audit decisions for target and returns how many were
// removed. It is bookkeeping only: nothing on the relay or the media service
// is touched, so a ban stays in force.
func (o *Orchestrator) Reopen(ctx context.Context, target string) (int64, error) {
	if o.cfg.Audit == nil {
		return 0, ErrNotConfigured
	}
	target = strings.ToLower(strings.TrimSpace(target))
	n, err := o.cfg.Audit.DeleteDecisionsForTarget(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("reopen %s: %w", target, err)
	}
	o.logger.Info("target reopened", "target", target, "decisions_removed", n)
	return n, nil
}

// Summary renders a result as a plain-text ticket note.
func Summary(in Intent, res *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Moderation action %s on %s: %s\n", in.Kind(), in.Target(), res.Status)
	if in.Reason() != "" {
		fmt.Fprintf(&b, "Reason: %s\n", in.Reason())
	}
	if in.Actor() != "" {
		fmt.Fprintf(&b, "By: %s\n", in.Actor())
	}
	if len(res.SubActions) > 0 {
		fmt.Fprintf(&b, "Events deleted: %d, media blocked: %d\n", res.EventsDeleted, res.MediaBlocked)
		for _, s := range res.SubActions {
			if !s.OK {
				fmt.Fprintf(&b, "- %s %s failed: %s\n", s.Action, s.Target, s.Error)
			}
		}
	}
	if res.Verification != nil {
		fmt.Fprintf(&b, "Verification: %s\n", res.Verification.Status)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	return strings.TrimRight(b.String(), "\n")
}
