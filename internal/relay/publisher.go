package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/divinevideo/relay-admin/internal/metrics"
)

// DefaultPublishTimeout bounds dial, send and acknowledgement together.
const DefaultPublishTimeout = 10 * time.Second

// Ack is a positive OK from the relay.
type Ack struct {
	EventID string
	Message string
}

// Publisher sends signed events to the relay over its WebSocket.
type Publisher struct {
	relayURL string
	timeout  time.Duration
}

// NewPublisher creates a Publisher. timeout <= 0 uses DefaultPublishTimeout.
func NewPublisher(relayURL string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Publisher{relayURL: relayURL, timeout: timeout}
}

// Publish sends ["EVENT", ev] and waits for the matching OK. It returns
// ErrPublishTimeout, *RejectedError or an error wrapping ErrConnectionClosed
// for the three ways a publish can fail after the event is sent.
func (p *Publisher) Publish(ctx context.Context, ev *nostr.Event) (*Ack, error) {
	start := time.Now()
	ack, err := p.publish(ctx, ev)

	var rejected *RejectedError
	outcome := "ok"
	switch {
	case errors.As(err, &rejected):
		outcome = "rejected"
	case errors.Is(err, ErrPublishTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordRelayCall(fmt.Sprintf("publish_kind_%d", ev.Kind), outcome, time.Since(start).Seconds())
	return ack, err
}

func (p *Publisher) publish(ctx context.Context, ev *nostr.Event) (*Ack, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	s, err := dial(ctx, p.relayURL)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrPublishTimeout
		}
		return nil, fmt.Errorf("relay: dial %s: %w", p.relayURL, err)
	}
	defer s.close()

	if err := s.send(ctx, "EVENT", ev); err != nil {
		return nil, closedErr(ctx, err, ErrPublishTimeout)
	}

	for {
		select {
		case frame := <-s.frames:
			if ack, done, err := matchOK(frame, ev.ID); done {
				return ack, err
			}
		case cause := <-s.done:
			// The OK may already be buffered when the relay hangs up.
			for len(s.frames) > 0 {
				if ack, done, err := matchOK(<-s.frames, ev.ID); done {
					return ack, err
				}
			}
			return nil, closedErr(ctx, cause, ErrPublishTimeout)
		case <-ctx.Done():
			return nil, closedErr(ctx, ctx.Err(), ErrPublishTimeout)
		}
	}
}

// matchOK interprets frame as ["OK", id, ok, msg]. The bool is false for
// anything that is not an OK for id.
func matchOK(frame []byte, id string) (*Ack, bool, error) {
	l, parts, ok := label(frame)
	if !ok || l != "OK" || len(parts) < 3 {
		return nil, false, nil
	}
	var gotID string
	var accepted bool
	if json.Unmarshal(parts[1], &gotID) != nil || gotID != id {
		return nil, false, nil
	}
	if json.Unmarshal(parts[2], &accepted) != nil {
		return nil, false, nil
	}
	var msg string
	if len(parts) > 3 {
		_ = json.Unmarshal(parts[3], &msg)
	}
	if !accepted {
		return nil, true, &RejectedError{EventID: id, Message: msg}
	}
	return &Ack{EventID: id, Message: msg}, true, nil
}
