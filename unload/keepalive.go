package unload

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-presence/pkg/types"
)

// ErrKeepaliveBusy indicates the keepalive dispatcher refused the request.
var ErrKeepaliveBusy = errors.New("unload: keepalive queue full")

// KeepaliveTransport dispatches a request that may outlive the caller. A nil
// error only means the request was accepted, not that it was delivered.
type KeepaliveTransport interface {
	Dispatch(req *http.Request) error
}

// AsyncKeepalive sends requests on a detached goroutine with its own
// timeout, so cancelling the caller's context does not abort them.
type AsyncKeepalive struct {
	client      *http.Client
	timeout     time.Duration
	maxInFlight int32
	inFlight    atomic.Int32
	logger      types.Logger
}

// KeepaliveConfig wires an AsyncKeepalive.
type KeepaliveConfig struct {
	Client      *http.Client
	Timeout     time.Duration
	MaxInFlight int
	Logger      types.Logger
}

// NewAsyncKeepalive builds the default keepalive transport.
func NewAsyncKeepalive(cfg KeepaliveConfig) *AsyncKeepalive {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxInFlight := int32(cfg.MaxInFlight)
	if maxInFlight <= 0 {
		maxInFlight = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &AsyncKeepalive{
		client:      client,
		timeout:     timeout,
		maxInFlight: maxInFlight,
		logger:      logger,
	}
}

var _ KeepaliveTransport = (*AsyncKeepalive)(nil)

// Dispatch implements KeepaliveTransport.
func (k *AsyncKeepalive) Dispatch(req *http.Request) error {
	if k.inFlight.Add(1) > k.maxInFlight {
		k.inFlight.Add(-1)
		return ErrKeepaliveBusy
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), k.timeout)
	detached := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			k.inFlight.Add(-1)
			return err
		}
		detached.Body = body
	}

	go func() {
		defer k.inFlight.Add(-1)
		defer cancel()
		resp, err := k.client.Do(detached)
		if err != nil {
			k.logger.Error("presence keepalive request failed", err)
			return
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			k.logger.Info("presence keepalive request rejected", "status", resp.StatusCode)
		}
	}()
	return nil
}

// KeepaliveFunc adapts a function to KeepaliveTransport.
type KeepaliveFunc func(req *http.Request) error

// Dispatch implements KeepaliveTransport.
func (f KeepaliveFunc) Dispatch(req *http.Request) error {
	return f(req)
}
