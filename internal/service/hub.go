package service

import (
	"sync"

	"github.com/msomdec/focusvault/internal/domain"
)

// Event notifies observers of a session that something changed.
type Event struct {
	SessionID string
	// Session is the latest session state, or nil if only tasks changed.
	Session      *domain.Session
	TasksChanged bool
}

// merge folds a newer event into e, keeping the newest session state and
// any pending task change.
func (e Event) merge(newer Event) Event {
	out := newer
	if out.Session == nil {
		out.Session = e.Session
	}
	out.TasksChanged = e.TasksChanged || newer.TasksChanged
	return out
}

// Hub fans out session events to subscribers. Publishing never blocks: a
// subscriber that has not consumed its previous event gets it merged with
// the new one.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers for events of one session. The returned cancel func
// must be called to release the subscription.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 1)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[sessionID][ch]; !ok {
				return // already closed by Close
			}
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of ev.SessionID.
func (h *Hub) Publish(ev Event) {
	if ev.Session != nil {
		ev.Session = ev.Session.Clone()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Buffer full: replace the pending event with the merged one.
		pending := ev
		select {
		case old := <-ch:
			pending = old.merge(ev)
		default:
		}
		select {
		case ch <- pending:
		default:
		}
	}
}

// Close ends every subscription. Subscribers see their channel closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, id)
	}
}
