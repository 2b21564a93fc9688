package mockrelay

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/nbd-wtf/go-nostr"
)

func (m *Relay) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		m.log("mockrelay: accept error", "error", err)
		return
	}
	defer c.CloseNow()

	ctx := r.Context()
	for {
		var msg []json.RawMessage
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			return
		}
		if len(msg) == 0 {
			continue
		}
		var label string
		if json.Unmarshal(msg[0], &label) != nil {
			continue
		}

		switch label {
		case "EVENT":
			if len(msg) < 2 {
				continue
			}
			if !m.handleEvent(ctx, c, msg[1]) {
				return
			}
		case "REQ":
			m.handleReq(ctx, c, msg[1:])
		case "CLOSE":
		default:
			_ = wsjson.Write(ctx, c, []any{"NOTICE", "unknown message: " + label})
		}
	}
}

// handleEvent returns false when the connection should be dropped.
func (m *Relay) handleEvent(ctx context.Context, c *websocket.Conn, raw json.RawMessage) bool {
	var ev nostr.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		_ = wsjson.Write(ctx, c, []any{"NOTICE", "invalid event"})
		return true
	}

	m.mu.Lock()
	m.published = append(m.published, ev)
	drop, hangUp := m.dropAcks, m.closeOnEvent
	m.mu.Unlock()

	if hangUp {
		_ = c.Close(websocket.StatusGoingAway, "bye")
		return false
	}
	if drop {
		return true
	}

	ok, reason := m.accept(ev)
	_ = wsjson.Write(ctx, c, []any{"OK", ev.ID, ok, reason})
	return true
}

func (m *Relay) accept(ev nostr.Event) (bool, string) {
	if !ev.CheckID() {
		return false, "invalid: bad event id"
	}
	if sigOK, err := ev.CheckSignature(); err != nil || !sigOK {
		return false, "invalid: bad signature"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if msg, ok := m.rejectKinds[ev.Kind]; ok {
		return false, msg
	}

	if ev.Kind == 5 {
		for _, tag := range ev.Tags {
			if len(tag) >= 2 && tag[0] == "e" {
				if msg, ok := m.rejectDeletion[tag[1]]; ok {
					return false, msg
				}
			}
		}
		for _, tag := range ev.Tags {
			if len(tag) >= 2 && tag[0] == "e" {
				delete(m.events, tag[1])
			}
		}
		return true, ""
	}

	m.events[ev.ID] = ev
	return true, ""
}

func (m *Relay) handleReq(ctx context.Context, c *websocket.Conn, args []json.RawMessage) {
	if len(args) < 1 {
		return
	}
	var sub string
	if json.Unmarshal(args[0], &sub) != nil {
		return
	}

	filters := make([]nostr.Filter, 0, len(args)-1)
	for _, raw := range args[1:] {
		var f nostr.Filter
		if err := json.Unmarshal(raw, &f); err != nil {
			_ = wsjson.Write(ctx, c, []any{"CLOSED", sub, "error: bad filter"})
			return
		}
		filters = append(filters, f)
	}

	for _, ev := range m.query(filters) {
		_ = wsjson.Write(ctx, c, []any{"EVENT", sub, ev})
	}
	_ = wsjson.Write(ctx, c, []any{"EOSE", sub})
}
