package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"

	"github.com/divinevideo/relay-admin/internal/metrics"
)

// Querier runs one-shot REQ subscriptions against the relay.
type Querier struct {
	relayURL string
	timeout  time.Duration
}

// NewQuerier creates a Querier. timeout <= 0 uses DefaultPublishTimeout.
func NewQuerier(relayURL string, timeout time.Duration) *Querier {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Querier{relayURL: relayURL, timeout: timeout}
}

// Query sends ["REQ", sub, filter], collects events until EOSE, then sends
// CLOSE. Events that fail signature checks are dropped.
func (q *Querier) Query(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error) {
	start := time.Now()
	events, err := q.query(ctx, filter)

	outcome := "ok"
	switch {
	case errors.Is(err, ErrQueryTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordRelayCall("query", outcome, time.Since(start).Seconds())
	return events, err
}

func (q *Querier) query(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	s, err := dial(ctx, q.relayURL)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrQueryTimeout
		}
		return nil, fmt.Errorf("relay: dial %s: %w", q.relayURL, err)
	}
	defer s.close()

	subID := "ra-" + uuid.NewString()[:8]
	if err := s.send(ctx, "REQ", subID, filter); err != nil {
		return nil, closedErr(ctx, err, ErrQueryTimeout)
	}

	events := []nostr.Event{}
	for {
		select {
		case frame := <-s.frames:
			l, parts, ok := label(frame)
			if !ok || len(parts) < 2 {
				continue
			}
			var sub string
			if json.Unmarshal(parts[1], &sub) != nil || sub != subID {
				continue
			}

			switch l {
			case "EVENT":
				if len(parts) < 3 {
					continue
				}
				var ev nostr.Event
				if json.Unmarshal(parts[2], &ev) != nil || !ev.CheckID() {
					continue
				}
				if sigOK, err := ev.CheckSignature(); err != nil || !sigOK {
					continue
				}
				events = append(events, ev)
			case "EOSE":
				_ = s.send(ctx, "CLOSE", subID)
				return events, nil
			case "CLOSED":
				var msg string
				if len(parts) > 2 {
					_ = json.Unmarshal(parts[2], &msg)
				}
				return nil, &ClosedError{SubscriptionID: subID, Message: msg}
			}
		case cause := <-s.done:
			return nil, closedErr(ctx, cause, ErrQueryTimeout)
		case <-ctx.Done():
			return nil, closedErr(ctx, ctx.Err(), ErrQueryTimeout)
		}
	}
}

// EventExists reports whether the relay still serves an event with id.
func (q *Querier) EventExists(ctx context.Context, id string) (bool, error) {
	events, err := q.Query(ctx, nostr.Filter{IDs: []string{id}, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(events) > 0, nil
}

// RecentEventIDs returns ids of the author's most recent events, newest first.
func (q *Querier) RecentEventIDs(ctx context.Context, pubkey string, limit int) ([]string, error) {
	events, err := q.Query(ctx, nostr.Filter{Authors: []string{pubkey}, Limit: limit})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	return ids, nil
}
