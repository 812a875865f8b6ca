package feed

import (
	"context"
	"sync"

	"github.com/goliatone/go-presence/pkg/types"
)

// Hub is an in-process change feed. Publish delivers synchronously on the
// caller's goroutine, which keeps tests deterministic. Listeners must not
// call back into the hub from OnChange.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*hubSubscription
	nextID uint64
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*hubSubscription)}
}

var (
	_ types.ChangeFeed      = (*Hub)(nil)
	_ types.ChangePublisher = (*Hub)(nil)
)

type hubSubscription struct {
	hub      *Hub
	id       uint64
	filter   types.ChangeFilter
	listener types.ChangeListener
	once     sync.Once
}

// Subscribe registers the listener and reports the channel as connected.
func (h *Hub) Subscribe(_ context.Context, filter types.ChangeFilter, listener types.ChangeListener) (types.ChangeSubscription, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, types.ErrFeedClosed
	}
	h.nextID++
	sub := &hubSubscription{
		hub:      h,
		id:       h.nextID,
		filter:   filter,
		listener: listener,
	}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	notifyState(listener, true, nil)
	return sub, nil
}

// Publish delivers the event to every matching subscription.
func (h *Hub) Publish(_ context.Context, evt types.ChangeEvent) error {
	for _, sub := range h.snapshot() {
		if !sub.filter.Matches(evt) {
			continue
		}
		if sub.listener.OnChange != nil {
			sub.listener.OnChange(evt)
		}
	}
	return nil
}

// Fail reports a channel error to every subscription without dropping them.
func (h *Hub) Fail(err error) {
	for _, sub := range h.snapshot() {
		notifyState(sub.listener, false, err)
	}
}

// Recover reports every subscription as connected again.
func (h *Hub) Recover() {
	for _, sub := range h.snapshot() {
		notifyState(sub.listener, true, nil)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscription and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*hubSubscription)
	h.closed = true
	h.mu.Unlock()
	for _, sub := range subs {
		notifyState(sub.listener, false, types.ErrFeedClosed)
	}
	return nil
}

func (h *Hub) snapshot() []*hubSubscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*hubSubscription, 0, len(h.subs))
	for _, sub := range h.subs {
		out = append(out, sub)
	}
	return out
}

func (s *hubSubscription) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
	})
	return nil
}
