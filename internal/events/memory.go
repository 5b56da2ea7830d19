package events

import (
	"context"
	"sync"
)

// DefaultHistory is the number of events kept per session.
const DefaultHistory = 100

// MemoryBus keeps a bounded per-session history and fans events out to
// in-process subscribers. Slow subscribers miss events rather than block.
type MemoryBus struct {
	limit int

	mu      sync.Mutex
	history map[string][]EyeEvent
	subs    map[string]map[chan EyeEvent]struct{}
}

// NewMemoryBus keeps up to limit events per session; limit <= 0 uses DefaultHistory.
func NewMemoryBus(limit int) *MemoryBus {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &MemoryBus{
		limit:   limit,
		history: make(map[string][]EyeEvent),
		subs:    make(map[string]map[chan EyeEvent]struct{}),
	}
}

// Publish implements Publisher.
func (b *MemoryBus) Publish(_ context.Context, ev EyeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := append(b.history[ev.SessionID], ev)
	if len(h) > b.limit {
		h = h[len(h)-b.limit:]
	}
	b.history[ev.SessionID] = h

	for ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// History returns a copy of the session's events, oldest first.
func (b *MemoryBus) History(sessionID string) []EyeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]EyeEvent(nil), b.history[sessionID]...)
}

// Forget drops a session's history.
func (b *MemoryBus) Forget(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.history, sessionID)
}

// Subscribe returns a channel of future events for sessionID and a cancel
// func that closes it.
func (b *MemoryBus) Subscribe(sessionID string, buffer int) (<-chan EyeEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan EyeEvent, buffer)

	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan EyeEvent]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[sessionID], ch)
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
			close(ch)
		})
	}
	return ch, cancel
}
