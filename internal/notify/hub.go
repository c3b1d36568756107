package notify

import (
	gosync "sync"

	"github.com/google/uuid"

	"github.com/nhle/daycare-notify/internal/model"
)

// Snapshot is the state consumers observe.
type Snapshot struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
	IsLoading     bool                 `json:"isLoading"`
}

// Unread returns only the unread notifications of the snapshot.
func (s Snapshot) Unread() []model.Notification {
	out := make([]model.Notification, 0, s.UnreadCount)
	for _, n := range s.Notifications {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// ReadSet reports whether a notification has been read.
type ReadSet interface {
	Has(id string) bool
}

type subscriber struct {
	ch chan Snapshot
}

// Hub holds the authoritative snapshot and broadcasts every change to
// subscribers. Read flags are derived from the read set whenever a list is
// published, so a consumer never sees a flag that disagrees with it.
type Hub struct {
	reads ReadSet

	mu     gosync.RWMutex
	snap   Snapshot
	subs   map[string]*subscriber
	closed bool
}

// NewHub creates a hub with an empty snapshot.
func NewHub(reads ReadSet) *Hub {
	return &Hub{
		reads: reads,
		snap:  Snapshot{Notifications: []model.Notification{}},
		subs:  make(map[string]*subscriber),
	}
}

// Snapshot returns the current snapshot. The returned slice must not be
// modified.
func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// Subscribe registers a consumer. The current snapshot is delivered first.
// When the consumer falls behind, the oldest undelivered snapshot is
// replaced so the newest one always arrives. cancel unregisters and closes
// the channel; it is safe to call more than once.
func (h *Hub) Subscribe(buffer int) (id string, ch <-chan Snapshot, cancel func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Snapshot, buffer)}
	id = uuid.NewString()

	h.mu.Lock()
	if h.closed {
		close(sub.ch)
		h.mu.Unlock()
		return id, sub.ch, func() {}
	}
	h.subs[id] = sub
	deliver(sub, h.snap)
	h.mu.Unlock()

	return id, sub.ch, func() { h.unsubscribe(id) }
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Subscribers returns the number of registered consumers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish replaces the notification list and ends the loading state. The
// list must already be merged and ordered; read flags are recomputed here.
func (h *Hub) Publish(list []model.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.snap.Notifications, h.snap.UnreadCount = h.annotate(list)
	h.snap.IsLoading = false
	h.broadcast()
}

// SetLoading updates the loading flag without touching the list.
func (h *Hub) SetLoading(loading bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.snap.IsLoading == loading {
		return
	}
	h.snap.IsLoading = loading
	h.broadcast()
}

// Reannotate recomputes read flags for the current list after the read set
// changed.
func (h *Hub) Reannotate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.snap.Notifications, h.snap.UnreadCount = h.annotate(h.snap.Notifications)
	h.broadcast()
}

// Close closes every subscriber channel. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// annotate returns a fresh copy of list with read flags set from the read
// set, and the number of unread entries.
func (h *Hub) annotate(list []model.Notification) ([]model.Notification, int) {
	out := make([]model.Notification, len(list))
	unread := 0
	for i, n := range list {
		n.Read = h.reads.Has(n.ID)
		if !n.Read {
			unread++
		}
		out[i] = n
	}
	return out, unread
}

// broadcast must be called with h.mu held.
func (h *Hub) broadcast() {
	for _, sub := range h.subs {
		deliver(sub, h.snap)
	}
}

// deliver sends snap without blocking, evicting the oldest queued snapshot
// when the buffer is full.
func deliver(sub *subscriber, snap Snapshot) {
	for {
		select {
		case sub.ch <- snap:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}
