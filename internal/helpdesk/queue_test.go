package helpdesk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPoster struct {
	mu    sync.Mutex
	notes []Note
	err   error
	block chan struct{}
}

func (p *recordingPoster) AddTicketNote(_ context.Context, ticketID, body string) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, Note{TicketID: ticketID, Body: body})
	return p.err
}

func (p *recordingPoster) delivered() []Note {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Note(nil), p.notes...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueue_DeliversOnClose(t *testing.T) {
	t.Parallel()

	p := &recordingPoster{}
	q := NewQueue(p, 8, discardLogger())
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Note{TicketID: "1", Body: "a"}))
	require.NoError(t, q.Enqueue(Note{TicketID: "2", Body: "b"}))
	q.Close()

	assert.Equal(t, []Note{{TicketID: "1", Body: "a"}, {TicketID: "2", Body: "b"}}, p.delivered())
	assert.ErrorIs(t, q.Enqueue(Note{TicketID: "3"}), ErrQueueClosed)
	q.Close()
}

func TestQueue_FailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	p := &recordingPoster{err: errors.New("zendesk down")}
	q := NewQueue(p, 4, discardLogger())
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Note{TicketID: "1"}))
	require.NoError(t, q.Enqueue(Note{TicketID: "2"}))
	q.Close()

	assert.Len(t, p.delivered(), 2, "a failed note does not stop the worker")
}

func TestQueue_DropsWhenFull(t *testing.T) {
	t.Parallel()

	p := &recordingPoster{block: make(chan struct{})}
	q := NewQueue(p, 1, discardLogger())

	// not started: the buffer holds exactly one note
	require.NoError(t, q.Enqueue(Note{TicketID: "1"}))
	assert.ErrorIs(t, q.Enqueue(Note{TicketID: "2"}), ErrQueueFull)

	q.Start(context.Background())
	close(p.block)
	q.Close()
	assert.Equal(t, []Note{{TicketID: "1"}}, p.delivered())
}
