package writer

import "time"

// Ticker is the recurring timer used for heartbeats and idle polling.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates tickers. The writer creates the heartbeat ticker
// first and the idle-poll ticker second.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

// NewTimeTicker wraps time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }
