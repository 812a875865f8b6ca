package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-presence/pkg/types"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultChannel is the broker channel/subject used when none is configured.
const DefaultChannel = "presence_changes"

// RedisConfig wires the Redis pub/sub feed.
type RedisConfig struct {
	Client  *goredis.Client
	Channel string
	Logger  types.Logger
}

// RedisFeed fans presence changes out over a Redis pub/sub channel. Every
// Subscribe opens its own Redis subscription.
type RedisFeed struct {
	rdb     *goredis.Client
	channel string
	logger  types.Logger
}

// NewRedisFeed builds a feed on an existing client.
func NewRedisFeed(cfg RedisConfig) (*RedisFeed, error) {
	if cfg.Client == nil {
		return nil, errors.New("feed: redis client required")
	}
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisFeed{
		rdb:     cfg.Client,
		channel: channel,
		logger:  safeLogger(cfg.Logger),
	}, nil
}

var (
	_ types.ChangeFeed      = (*RedisFeed)(nil)
	_ types.ChangePublisher = (*RedisFeed)(nil)
)

// Publish encodes the event and publishes it on the channel.
func (f *RedisFeed) Publish(ctx context.Context, evt types.ChangeEvent) error {
	raw, err := Encode(evt)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, raw).Err()
}

// Subscribe confirms the Redis subscription before returning, then forwards
// matching messages from a background goroutine until Close.
func (f *RedisFeed) Subscribe(ctx context.Context, filter types.ChangeFilter, listener types.ChangeListener) (types.ChangeSubscription, error) {
	sub := f.rdb.Subscribe(ctx, f.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("feed: redis subscribe: %w", err)
	}

	rs := &redisSubscription{
		sub:  sub,
		done: make(chan struct{}),
	}
	notifyState(listener, true, nil)

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-rs.done:
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					select {
					case <-rs.done:
					default:
						notifyState(listener, false, types.ErrFeedClosed)
					}
					return
				}
				dispatch([]byte(m.Payload), filter, listener, f.logger)
			}
		}
	}()

	return rs, nil
}

type redisSubscription struct {
	sub  *goredis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.sub.Close()
	})
	return s.err
}
