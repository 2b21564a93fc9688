package relay

import "github.com/nbd-wtf/go-nostr"

// Event kinds published by the service.
const (
	KindDeletion = 5
	KindLabel    = 1985
)

// DefaultLabelNamespace is used when a label intent names none.
const DefaultLabelNamespace = "social.divine.moderation"

// DeletionEvent builds an unsigned NIP-09 deletion request for ids.
func DeletionEvent(ids []string, reason string) *nostr.Event {
	tags := make(nostr.Tags, 0, len(ids))
	for _, id := range ids {
		tags = append(tags, nostr.Tag{"e", id})
	}
	return &nostr.Event{
		Kind:    KindDeletion,
		Tags:    tags,
		Content: reason,
	}
}

// LabelTarget is what a label applies to: an event, a pubkey, or both.
type LabelTarget struct {
	EventID string
	Pubkey  string
}

// LabelEvent builds an unsigned NIP-32 label event.
func LabelEvent(target LabelTarget, namespace, label, reason string) *nostr.Event {
	if namespace == "" {
		namespace = DefaultLabelNamespace
	}
	tags := nostr.Tags{
		{"L", namespace},
		{"l", label, namespace},
	}
	if target.EventID != "" {
		tags = append(tags, nostr.Tag{"e", target.EventID})
	}
	if target.Pubkey != "" {
		tags = append(tags, nostr.Tag{"p", target.Pubkey})
	}
	return &nostr.Event{
		Kind:    KindLabel,
		Tags:    tags,
		Content: reason,
	}
}
