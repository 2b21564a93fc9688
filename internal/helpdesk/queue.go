package helpdesk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/divinevideo/relay-admin/internal/metrics"
)

// DefaultQueueSize is the number of notes buffered before Enqueue drops.
const DefaultQueueSize = 256

// Note is an internal comment destined for a ticket.
type Note struct {
	TicketID string
	Body     string
}

// Poster delivers one note. *Client implements it.
type Poster interface {
	AddTicketNote(ctx context.Context, ticketID, body string) error
}

// Queue posts notes in the background. Delivery is best-effort: failures are
// logged and counted, never reported back to whoever enqueued the note.
type Queue struct {
	poster  Poster
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	notes  chan Note
	wg     sync.WaitGroup
}

// NewQueue creates a queue with room for size pending notes.
func NewQueue(poster Poster, size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		poster:  poster,
		logger:  logger,
		timeout: DefaultTimeout,
		notes:   make(chan Note, size),
	}
}

// Start runs the worker until Close. ctx is the parent of every post.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for n := range q.notes {
			metrics.SetHelpdeskQueueDepth(len(q.notes))
			q.deliver(ctx, n)
		}
	}()
}

func (q *Queue) deliver(ctx context.Context, n Note) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if err := q.poster.AddTicketNote(ctx, n.TicketID, n.Body); err != nil {
		metrics.RecordHelpdeskNote("failed")
		q.logger.Warn("helpdesk note failed", "ticket_id", n.TicketID, "error", err)
		return
	}
	metrics.RecordHelpdeskNote("sent")
	q.logger.Debug("helpdesk note sent", "ticket_id", n.TicketID)
}

// Enqueue buffers a note without blocking.
func (q *Queue) Enqueue(n Note) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.notes <- n:
		metrics.SetHelpdeskQueueDepth(len(q.notes))
		return nil
	default:
		metrics.RecordHelpdeskNote("dropped")
		q.logger.Warn("helpdesk queue full, note dropped", "ticket_id", n.TicketID)
		return ErrQueueFull
	}
}

// Close stops accepting notes and waits for buffered ones to be delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.notes)
	q.mu.Unlock()

	q.wg.Wait()
}
