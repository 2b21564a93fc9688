package moderation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"github.com/divinevideo/relay-admin/internal/credential"
	"github.com/divinevideo/relay-admin/internal/helpdesk"
	"github.com/divinevideo/relay-admin/internal/media"
	"github.com/divinevideo/relay-admin/internal/relay"
	"github.com/divinevideo/relay-admin/internal/storage"
)

var (
	pubkeyA = strings.Repeat("a", 64)
	event1  = strings.Repeat("1", 64)
	event2  = strings.Repeat("2", 64)
	event3  = strings.Repeat("3", 64)
	hashX   = strings.Repeat("e", 64)
	hashY   = strings.Repeat("f", 64)
)

// fakeRelay keeps a ban list and counts every call.
type fakeRelay struct {
	mu      sync.Mutex
	banned  map[string]bool
	calls   []string
	banErr  error
	listErr error
	skipBan bool // accept the ban but never record it
	onBan   func()
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{banned: map[string]bool{}}
}

func (f *fakeRelay) BanPubkey(_ context.Context, pubkey, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ban:"+pubkey)
	if f.onBan != nil {
		f.onBan()
	}
	if f.banErr != nil {
		return f.banErr
	}
	if !f.skipBan {
		f.banned[pubkey] = true
	}
	return nil
}

func (f *fakeRelay) AllowPubkey(_ context.Context, pubkey, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "allow:"+pubkey)
	delete(f.banned, pubkey)
	return nil
}

func (f *fakeRelay) ListBannedPubkeys(context.Context) ([]relay.BannedPubkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []relay.BannedPubkey{}
	for pk := range f.banned {
		out = append(out, relay.BannedPubkey{Pubkey: pk})
	}
	return out, nil
}

func (f *fakeRelay) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeEvents publishes into and queries from an in-memory event set.
type fakeEvents struct {
	mu        sync.Mutex
	events    map[string]nostr.Event
	byAuthor  map[string][]string
	published []nostr.Event
	failFor   map[string]error // deletion target -> error
	queryErr  error
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{
		events:   map[string]nostr.Event{},
		byAuthor: map[string][]string{},
		failFor:  map[string]error{},
	}
}

func (f *fakeEvents) add(author string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.events[id] = nostr.Event{ID: id, PubKey: author}
		f.byAuthor[author] = append(f.byAuthor[author], id)
	}
}

func (f *fakeEvents) Publish(_ context.Context, ev *nostr.Event) (*relay.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, *ev)
	if ev.Kind == relay.KindDeletion {
		for _, tag := range ev.Tags {
			if err, ok := f.failFor[tag.Value()]; ok {
				return nil, err
			}
		}
		for _, tag := range ev.Tags {
			delete(f.events, tag.Value())
		}
	} else {
		f.events[ev.ID] = *ev
	}
	return &relay.Ack{EventID: ev.ID}, nil
}

func (f *fakeEvents) EventExists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return false, f.queryErr
	}
	_, ok := f.events[id]
	return ok, nil
}

func (f *fakeEvents) RecentEventIDs(_ context.Context, pubkey string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	ids := f.byAuthor[pubkey]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return append([]string(nil), ids...), nil
}

func (f *fakeEvents) publishedEvents() []nostr.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]nostr.Event(nil), f.published...)
}

// fakeMedia tracks block state per hash.
type fakeMedia struct {
	mu      sync.Mutex
	state   map[string]string
	calls   int
	failFor map[string]error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{state: map[string]string{}, failFor: map[string]error{}}
}

func (f *fakeMedia) Block(_ context.Context, sha, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.failFor[sha]; err != nil {
		return err
	}
	f.state[sha] = media.ActionBlock
	return nil
}

func (f *fakeMedia) Unblock(_ context.Context, sha, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.state[sha] = media.ActionUnblock
	return nil
}

func (f *fakeMedia) Status(_ context.Context, sha string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.state[sha]
	if !ok {
		return "", media.ErrNotFound
	}
	return s, nil
}

func (f *fakeMedia) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failingAudit wraps a store and fails every AddDecision.
type failingAudit struct {
	AuditStore
}

func (failingAudit) AddDecision(context.Context, *storage.Decision) (*storage.Decision, error) {
	return nil, errors.New("disk full")
}

type noteSink struct {
	mu    sync.Mutex
	notes []helpdesk.Note
	err   error
}

func (s *noteSink) Enqueue(n helpdesk.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.notes = append(s.notes, n)
	return nil
}

type harness struct {
	relay  *fakeRelay
	events *fakeEvents
	media  *fakeMedia
	store  *storage.SQLiteStorage
	notes  *noteSink
	cfg    Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := storage.New(":memory:", make([]byte, 32))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	sk := nostr.GeneratePrivateKey()
	h := &harness{
		relay:  newFakeRelay(),
		events: newFakeEvents(),
		media:  newFakeMedia(),
		store:  store,
		notes:  &noteSink{},
	}
	h.cfg = Config{
		Relay:             h.relay,
		Signer:            relay.NewSigner(credential.Literal(sk)),
		Publisher:         h.events,
		Querier:           h.events,
		Media:             h.media,
		Audit:             store,
		Notes:             h.notes,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Concurrency:       1,
		RecentEventsLimit: 100,
	}
	return h
}

func (h *harness) orchestrator() *Orchestrator {
	return New(h.cfg)
}

func (h *harness) decisions(t *testing.T, target string) []*storage.Decision {
	t.Helper()
	ds, err := h.store.GetDecisionsForTarget(context.Background(), target)
	if err != nil {
		t.Fatalf("GetDecisionsForTarget() error = %v", err)
	}
	return ds
}

func mustIntent(t *testing.T, kind Kind, target string, opts Options) Intent {
	t.Helper()
	in, err := NewIntent(kind, target, opts)
	if err != nil {
		t.Fatalf("NewIntent() error = %v", err)
	}
	return in
}
