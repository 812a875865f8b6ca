package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PostgresConfig wires the LISTEN/NOTIFY feed.
type PostgresConfig struct {
	DB      *bun.DB
	Channel string
	Logger  types.Logger
}

// PostgresFeed listens on the channel fed by the notify_presence_change
// trigger installed by the postgres migrations.
type PostgresFeed struct {
	db      *bun.DB
	channel string
	logger  types.Logger
}

// NewPostgresFeed builds a feed on a pgdriver-backed bun.DB.
func NewPostgresFeed(cfg PostgresConfig) (*PostgresFeed, error) {
	if cfg.DB == nil {
		return nil, errors.New("feed: postgres db required")
	}
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &PostgresFeed{
		db:      cfg.DB,
		channel: channel,
		logger:  safeLogger(cfg.Logger),
	}, nil
}

var (
	_ types.ChangeFeed      = (*PostgresFeed)(nil)
	_ types.ChangePublisher = (*PostgresFeed)(nil)
)

// Publish sends a NOTIFY with the encoded event. Deployments that rely on
// the trigger do not need to configure it as a command publisher.
func (f *PostgresFeed) Publish(ctx context.Context, evt types.ChangeEvent) error {
	raw, err := Encode(evt)
	if err != nil {
		return err
	}
	return pgdriver.Notify(ctx, f.db, f.channel, string(raw))
}

// Subscribe opens a dedicated listener connection.
func (f *PostgresFeed) Subscribe(ctx context.Context, filter types.ChangeFilter, listener types.ChangeListener) (types.ChangeSubscription, error) {
	ln := pgdriver.NewListener(f.db)
	if err := ln.Listen(ctx, f.channel); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("feed: postgres listen: %w", err)
	}

	ps := &postgresSubscription{
		ln:   ln,
		done: make(chan struct{}),
	}
	notifyState(listener, true, nil)

	go func() {
		ch := ln.Channel()
		for {
			select {
			case <-ps.done:
				return
			case n, ok := <-ch:
				if !ok {
					select {
					case <-ps.done:
					default:
						notifyState(listener, false, types.ErrFeedClosed)
					}
					return
				}
				dispatch([]byte(n.Payload), filter, listener, f.logger)
			}
		}
	}()

	return ps, nil
}

type postgresSubscription struct {
	ln   *pgdriver.Listener
	done chan struct{}
	once sync.Once
	err  error
}

func (s *postgresSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ln.Close()
	})
	return s.err
}
