package reader

import (
	"context"
	"sync"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
)

// UpdateFunc receives every normalized record applied to the cache.
type UpdateFunc func(types.PresenceRecord)

// Subscription is the handle returned by Subscribe. Close must be called
// when the consumer loses interest; it is safe to call more than once.
type Subscription struct {
	ids   []uuid.UUID
	inner types.ChangeSubscription
	once  sync.Once
	done  chan struct{}
	err   error
}

// IDs returns the id set the subscription is filtered to.
func (s *Subscription) IDs() []uuid.UUID {
	return append([]uuid.UUID(nil), s.ids...)
}

// Done is closed once the subscription has been released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close releases the feed subscription.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		if s.inner != nil {
			s.err = s.inner.Close()
		}
		close(s.done)
	})
	return s.err
}

// Subscribe follows presence changes for the given users. Once the feed is
// open the cache is primed with a one-shot fetch; a failed prime is logged
// and the subscription stays open. The subscription is released when ctx is done
// or Close is called, whichever comes first.
func (r *Reader) Subscribe(ctx context.Context, userIDs []uuid.UUID, onUpdate UpdateFunc) (*Subscription, error) {
	if r.feed == nil {
		return nil, types.ErrMissingChangeFeed
	}
	ids := uniqueIDs(userIDs)
	sub := &Subscription{ids: ids, done: make(chan struct{})}
	if len(ids) == 0 {
		_ = sub.Close()
		return sub, nil
	}

	inner, err := r.feed.Subscribe(ctx, types.ChangeFilter{
		Table:   r.table,
		Type:    types.ChangeEventUpdate,
		UserIDs: ids,
	}, types.ChangeListener{
		OnChange: func(evt types.ChangeEvent) {
			r.apply(evt, onUpdate)
		},
		OnState: r.setState,
	})
	if err != nil {
		r.setState(false, err)
		return nil, err
	}
	sub.inner = inner

	// Prime after the feed is open so writes landing during the fetch are
	// delivered; store keeps whichever record is newer.
	if _, err := r.GetMultipleStatus(ctx, ids); err != nil {
		r.logger.Error("presence cache prime failed", err, "users", len(ids))
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

func (r *Reader) apply(evt types.ChangeEvent, onUpdate UpdateFunc) {
	rec := normalize(evt.New)
	if !r.store(rec) {
		r.logger.Debug("presence change older than cache dropped", "user_id", rec.UserID)
		return
	}
	if onUpdate != nil {
		onUpdate(rec.Clone())
	}
}
