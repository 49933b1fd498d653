package runner

import (
	"sync"
	"time"

	"github.com/flemzord/chime/internal/store"
)

// Event is one live execution notification, published after the record
// is persisted. Subscribers that fall behind miss events; the store is
// the durable history, the hub is a best-effort feed.
type Event struct {
	ExecutionID  int64        `json:"execution_id"`
	DefinitionID int64        `json:"definition_id"`
	ExternalID   string       `json:"external_id"`
	Name         string       `json:"name"`
	JobRef       string       `json:"job_ref"`
	Status       store.Status `json:"status"`
	At           time.Time    `json:"at"`
}

const subscriberBuffer = 16

// Hub fans execution events out to live subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of future events and a cancel function.
// The channel is closed on cancel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber, dropping it for any whose
// buffer is full.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
