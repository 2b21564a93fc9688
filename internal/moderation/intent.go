// Package moderation turns moderation intents into relay and media-service
// effects, records an audit decision for every effect that landed, and then
// checks that the relay actually reflects it.
package moderation

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/divinevideo/relay-admin/internal/storage"
)

// Kind names what an intent does.
type Kind string

// Intent kinds.
const (
	KindBanPubkey    Kind = "ban_pubkey"
	KindUnbanPubkey  Kind = "unban_pubkey"
	KindDeleteEvent  Kind = "delete_event"
	KindBlockMedia   Kind = "block_media"
	KindUnblockMedia Kind = "unblock_media"
	KindLabel        Kind = "label"
)

// ErrInvalidIntent is wrapped by every NewIntent validation failure.
var ErrInvalidIntent = errors.New("invalid moderation intent")

// ParseKind accepts the kind names used over HTTP, including the short
// action aliases the dashboard sends.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ban_pubkey", "ban", "ban_user":
		return KindBanPubkey, true
	case "unban_pubkey", "unban", "unban_user", "allow_pubkey":
		return KindUnbanPubkey, true
	case "delete_event", "delete":
		return KindDeleteEvent, true
	case "block_media", "block":
		return KindBlockMedia, true
	case "unblock_media", "unblock":
		return KindUnblockMedia, true
	case "label":
		return KindLabel, true
	}
	return "", false
}

// TargetType is the audit target type for the kind's primary target.
func (k Kind) TargetType() string {
	switch k {
	case KindBanPubkey, KindUnbanPubkey:
		return storage.TargetPubkey
	case KindBlockMedia, KindUnblockMedia:
		return storage.TargetMedia
	default:
		return storage.TargetEvent
	}
}

// Options carries everything about an intent besides its kind and target.
type Options struct {
	Reason   string
	Actor    string
	ReportID string
	TicketID string

	// Ban fan-out. When DeleteEvents is set and EventIDs is empty the
	// target's most recent events are looked up on the relay.
	DeleteEvents bool
	EventIDs     []string
	MediaHashes  []string

	// Label intents. LabelPubkey labels the target as a pubkey rather than
	// an event.
	Label          string
	LabelNamespace string
	LabelPubkey    bool
}

// Intent is a validated moderation request. It is a value: accessors return
// copies and nothing mutates it after NewIntent.
type Intent struct {
	kind   Kind
	target string
	opts   Options
}

// NewIntent validates and normalises a moderation request. Pubkey and event
// targets may be given as hex or as npub/note bech32.
func NewIntent(kind Kind, target string, opts Options) (Intent, error) {
	var err error
	switch kind {
	case KindBanPubkey, KindUnbanPubkey:
		target, err = normalizeID(target, "npub")
	case KindDeleteEvent:
		target, err = normalizeID(target, "note")
	case KindLabel:
		prefix := "note"
		if opts.LabelPubkey {
			prefix = "npub"
		}
		target, err = normalizeID(target, prefix)
		if err == nil && strings.TrimSpace(opts.Label) == "" {
			err = errors.New("label is required")
		}
	case KindBlockMedia, KindUnblockMedia:
		target, err = normalizeID(target, "")
	default:
		return Intent{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidIntent, kind)
	}
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %s target: %v", ErrInvalidIntent, kind, err)
	}

	if kind != KindBanPubkey && (opts.DeleteEvents || len(opts.EventIDs) > 0 || len(opts.MediaHashes) > 0) {
		return Intent{}, fmt.Errorf("%w: only %s fans out to events and media", ErrInvalidIntent, KindBanPubkey)
	}

	ids := make([]string, 0, len(opts.EventIDs))
	for _, id := range opts.EventIDs {
		n, err := normalizeID(id, "note")
		if err != nil {
			return Intent{}, fmt.Errorf("%w: event id %q: %v", ErrInvalidIntent, id, err)
		}
		if !slices.Contains(ids, n) {
			ids = append(ids, n)
		}
	}
	hashes := make([]string, 0, len(opts.MediaHashes))
	for _, h := range opts.MediaHashes {
		n, err := normalizeID(h, "")
		if err != nil {
			return Intent{}, fmt.Errorf("%w: media hash %q: %v", ErrInvalidIntent, h, err)
		}
		if !slices.Contains(hashes, n) {
			hashes = append(hashes, n)
		}
	}
	opts.EventIDs = ids
	opts.MediaHashes = hashes
	if len(ids) > 0 {
		opts.DeleteEvents = true
	}
	opts.Reason = strings.TrimSpace(opts.Reason)

	return Intent{kind: kind, target: target, opts: opts}, nil
}

// Kind returns the action kind.
func (i Intent) Kind() Kind { return i.kind }

// Target returns the normalized primary target.
func (i Intent) Target() string { return i.target }

// Reason returns the trimmed moderation reason.
func (i Intent) Reason() string { return i.opts.Reason }

// Actor returns who requested the action, if known.
func (i Intent) Actor() string { return i.opts.Actor }

// ReportID returns the originating report, if any.
func (i Intent) ReportID() string { return i.opts.ReportID }

// TicketID returns the helpdesk ticket the action answers, if any.
func (i Intent) TicketID() string { return i.opts.TicketID }

// DeleteEvents reports whether a ban also removes the target's events.
func (i Intent) DeleteEvents() bool { return i.opts.DeleteEvents }

// EventIDs returns a copy of the explicit event ids to delete.
func (i Intent) EventIDs() []string { return slices.Clone(i.opts.EventIDs) }

// MediaHashes returns a copy of the media hashes to block.
func (i Intent) MediaHashes() []string { return slices.Clone(i.opts.MediaHashes) }

// Options returns a copy of the intent's options.
func (i Intent) Options() Options {
	o := i.opts
	o.EventIDs = slices.Clone(o.EventIDs)
	o.MediaHashes = slices.Clone(o.MediaHashes)
	return o
}

// normalizeID returns the lowercase 64-char hex form of s. When bech32Prefix
// is set, that bech32 form is accepted too.
func normalizeID(s, bech32Prefix string) (string, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "nostr:"))
	if bech32Prefix != "" && strings.HasPrefix(strings.ToLower(s), bech32Prefix+"1") {
		prefix, v, err := nip19.Decode(strings.ToLower(s))
		if err != nil || prefix != bech32Prefix {
			return "", fmt.Errorf("not a valid %s", bech32Prefix)
		}
		hexID, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("not a valid %s", bech32Prefix)
		}
		s = hexID
	}
	s = strings.ToLower(s)
	if b, err := hex.DecodeString(s); err != nil || len(b) != 32 {
		return "", errors.New("must be 64 hex characters")
	}
	return s, nil
}
