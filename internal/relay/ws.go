package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// maxFrameBytes bounds a single relay message.
const maxFrameBytes = 1 << 20

// session is one WebSocket connection whose frames are pumped into a channel
// so callers can select on them alongside timeouts.
type session struct {
	conn   *websocket.Conn
	frames chan []byte
	done   chan error
}

func dial(ctx context.Context, relayURL string) (*session, error) {
	conn, _, err := websocket.Dial(ctx, relayURL, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxFrameBytes)

	s := &session{
		conn:   conn,
		frames: make(chan []byte, 16),
		done:   make(chan error, 1),
	}
	go s.pump(ctx)
	return s, nil
}

// pump reads until the connection ends, then reports why on done.
func (s *session) pump(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.done <- err
			return
		}
		select {
		case s.frames <- data:
		case <-ctx.Done():
			s.done <- ctx.Err()
			return
		}
	}
}

func (s *session) send(ctx context.Context, msg ...any) error {
	if err := wsjson.Write(ctx, s.conn, msg); err != nil {
		return fmt.Errorf("relay: write %v: %w", msg[0], err)
	}
	return nil
}

func (s *session) close() {
	_ = s.conn.Close(websocket.StatusNormalClosure, "")
}

// label returns the first element of a relay message array.
func label(frame []byte) (string, []json.RawMessage, bool) {
	var parts []json.RawMessage
	if err := json.Unmarshal(frame, &parts); err != nil || len(parts) == 0 {
		return "", nil, false
	}
	var l string
	if err := json.Unmarshal(parts[0], &l); err != nil {
		return "", nil, false
	}
	return l, parts, true
}

// closedErr maps why the socket ended to the caller-facing error.
// A deadline on ctx is the caller's timeout.
func closedErr(ctx context.Context, cause error, timeout error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeout
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrConnectionClosed, cause)
}
