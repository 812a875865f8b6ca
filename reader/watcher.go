package reader

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Watcher owns at most one live subscription and replaces it whenever the
// watched id set changes. The feed filter is fixed per subscription, so a
// new set always means a new subscription.
type Watcher struct {
	reader   *Reader
	onUpdate UpdateFunc

	mu  sync.Mutex
	ctx context.Context
	sub *Subscription
	ids []uuid.UUID
}

// NewWatcher binds a watcher to ctx; cancelling it releases the current
// subscription.
func (r *Reader) NewWatcher(ctx context.Context, onUpdate UpdateFunc) *Watcher {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Watcher{reader: r, onUpdate: onUpdate, ctx: ctx}
}

// SetIDs re-subscribes when the set differs from the current one. Order and
// duplicates are ignored.
func (w *Watcher) SetIDs(userIDs []uuid.UUID) error {
	ids := sortedIDs(uniqueIDs(userIDs))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil && slices.Equal(ids, w.ids) {
		return nil
	}
	if w.sub != nil {
		_ = w.sub.Close()
		w.sub = nil
		w.ids = nil
	}
	sub, err := w.reader.Subscribe(w.ctx, ids, w.onUpdate)
	if err != nil {
		return err
	}
	w.sub = sub
	w.ids = ids
	return nil
}

// Current returns the live subscription, if any.
func (w *Watcher) Current() *Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sub
}

// Close releases the current subscription.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub == nil {
		return nil
	}
	err := w.sub.Close()
	w.sub = nil
	w.ids = nil
	return err
}

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return ids
}
