package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/nats-io/nats.go"
)

// NATSConfig wires the NATS feed.
type NATSConfig struct {
	Conn    *nats.Conn
	Subject string
	Logger  types.Logger
}

// NATSFeed fans presence changes out over a NATS subject.
type NATSFeed struct {
	nc      *nats.Conn
	subject string
	logger  types.Logger
}

// NewNATSFeed builds a feed on an existing connection.
func NewNATSFeed(cfg NATSConfig) (*NATSFeed, error) {
	if cfg.Conn == nil {
		return nil, errors.New("feed: nats connection required")
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultChannel
	}
	return &NATSFeed{
		nc:      cfg.Conn,
		subject: subject,
		logger:  safeLogger(cfg.Logger),
	}, nil
}

var (
	_ types.ChangeFeed      = (*NATSFeed)(nil)
	_ types.ChangePublisher = (*NATSFeed)(nil)
)

// Publish encodes the event and publishes it on the subject.
func (f *NATSFeed) Publish(_ context.Context, evt types.ChangeEvent) error {
	raw, err := Encode(evt)
	if err != nil {
		return err
	}
	return f.nc.Publish(f.subject, raw)
}

// Subscribe registers an async subscription. NATS delivers messages on its
// own goroutine per subscription, so OnChange calls are serialized.
func (f *NATSFeed) Subscribe(_ context.Context, filter types.ChangeFilter, listener types.ChangeListener) (types.ChangeSubscription, error) {
	if f.nc.IsClosed() {
		return nil, types.ErrFeedClosed
	}
	sub, err := f.nc.Subscribe(f.subject, func(msg *nats.Msg) {
		dispatch(msg.Data, filter, listener, f.logger)
	})
	if err != nil {
		return nil, fmt.Errorf("feed: nats subscribe: %w", err)
	}
	notifyState(listener, f.nc.IsConnected(), nil)
	return &natsSubscription{sub: sub}, nil
}

type natsSubscription struct {
	sub  *nats.Subscription
	once sync.Once
	err  error
}

func (s *natsSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.sub.Unsubscribe()
		if errors.Is(s.err, nats.ErrConnectionClosed) {
			s.err = nil
		}
	})
	return s.err
}
