// Package writer owns the presence state of one session: the initial online
// write, heartbeats, idle and visibility transitions and the single terminal
// offline write.
package writer

import (
	"context"
	"sync"
	"time"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-presence/command"
	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultIdlePollInterval  = 30 * time.Second
	DefaultIdleThreshold     = 5 * time.Minute
)

// UnloadFlusher persists the offline transition while the session is being
// torn down and the normal write path cannot be relied on.
type UnloadFlusher interface {
	Flush(userID uuid.UUID) error
}

// Config wires a session writer.
type Config struct {
	Updater  gocommand.Commander[command.PresenceUpdateInput]
	Identity types.IdentityResolver
	Flusher  UnloadFlusher
	Policy   types.TransitionPolicy
	Clock    types.Clock
	Logger   types.Logger

	HeartbeatInterval time.Duration
	IdlePollInterval  time.Duration
	IdleThreshold     time.Duration
	NewTicker         TickerFactory
}

// Writer is session scoped; create one per logical session.
type Writer struct {
	updater  gocommand.Commander[command.PresenceUpdateInput]
	identity types.IdentityResolver
	flusher  UnloadFlusher
	policy   types.TransitionPolicy
	clock    types.Clock
	logger   types.Logger

	heartbeatInterval time.Duration
	idlePollInterval  time.Duration
	idleThreshold     time.Duration
	newTicker         TickerFactory

	mu           sync.Mutex
	userID       uuid.UUID
	state        types.PresenceStatus
	lastActivity time.Time
	terminated   bool
	loop         *loop
}

type loop struct {
	heartbeat Ticker
	idle      Ticker
	stop      chan struct{}
	done      chan struct{}
}

// New constructs a writer. A nil Updater turns every write into a logged
// no-op.
func New(cfg Config) *Writer {
	w := &Writer{
		updater:           cfg.Updater,
		identity:          cfg.Identity,
		flusher:           cfg.Flusher,
		policy:            cfg.Policy,
		clock:             cfg.Clock,
		logger:            cfg.Logger,
		heartbeatInterval: cfg.HeartbeatInterval,
		idlePollInterval:  cfg.IdlePollInterval,
		idleThreshold:     cfg.IdleThreshold,
		newTicker:         cfg.NewTicker,
	}
	if w.identity == nil {
		w.identity = types.IdentityFunc(nil)
	}
	if w.policy == nil {
		w.policy = types.DefaultTransitionPolicy()
	}
	if w.clock == nil {
		w.clock = types.SystemClock{}
	}
	if w.logger == nil {
		w.logger = types.NopLogger{}
	}
	if w.heartbeatInterval <= 0 {
		w.heartbeatInterval = DefaultHeartbeatInterval
	}
	if w.idlePollInterval <= 0 {
		w.idlePollInterval = DefaultIdlePollInterval
	}
	if w.idleThreshold <= 0 {
		w.idleThreshold = DefaultIdleThreshold
	}
	if w.newTicker == nil {
		w.newTicker = NewTimeTicker
	}
	return w
}

// Start resolves the session user, writes online and starts the heartbeat
// and idle-poll loop. Without an identity the writer stays uninitialized.
// The loop keeps ctx values but not its cancellation; it runs until Stop or
// Unload.
func (w *Writer) Start(ctx context.Context) {
	userID := w.identity.CurrentUserID(ctx)
	if userID == uuid.Nil {
		w.logger.Debug("presence writer start skipped: no identity")
		return
	}

	w.mu.Lock()
	if w.terminated || w.loop != nil {
		w.mu.Unlock()
		return
	}
	w.userID = userID
	w.lastActivity = w.clock.Now()
	ok := w.transitionLocked(types.PresenceStatusOnline)
	lp := &loop{
		heartbeat: w.newTicker(w.heartbeatInterval),
		idle:      w.newTicker(w.idlePollInterval),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	w.loop = lp
	w.mu.Unlock()

	go w.run(context.WithoutCancel(ctx), lp)

	if ok {
		w.write(ctx, userID, types.PresenceStatusOnline)
	}
}

func (w *Writer) run(ctx context.Context, lp *loop) {
	defer close(lp.done)
	for {
		select {
		case <-lp.stop:
			return
		case <-lp.heartbeat.C():
			w.Heartbeat(ctx)
		case <-lp.idle.C():
			w.CheckIdle(ctx)
		}
	}
}

// Activity records a user input event and returns an away session to online.
func (w *Writer) Activity(ctx context.Context, kind ActivityKind) {
	if !kind.Qualifies() {
		return
	}
	w.mu.Lock()
	if w.terminated || w.userID == uuid.Nil {
		w.mu.Unlock()
		return
	}
	w.lastActivity = w.clock.Now()
	if w.state != types.PresenceStatusAway {
		w.mu.Unlock()
		return
	}
	ok := w.transitionLocked(types.PresenceStatusOnline)
	userID := w.userID
	w.mu.Unlock()

	if ok {
		w.write(ctx, userID, types.PresenceStatusOnline)
	}
}

// CheckIdle moves an online session to away once no qualifying activity was
// seen for the idle threshold. Busy sessions are left alone.
func (w *Writer) CheckIdle(ctx context.Context) {
	w.mu.Lock()
	if w.terminated || w.state != types.PresenceStatusOnline {
		w.mu.Unlock()
		return
	}
	if w.clock.Now().Sub(w.lastActivity) < w.idleThreshold {
		w.mu.Unlock()
		return
	}
	ok := w.transitionLocked(types.PresenceStatusAway)
	userID := w.userID
	w.mu.Unlock()

	if ok {
		w.write(ctx, userID, types.PresenceStatusAway)
	}
}

// Heartbeat re-asserts the current live status. It is a no-op unless the
// local state is online or busy, so it can never resurrect an away or
// terminated session. Failures leave the local state untouched.
func (w *Writer) Heartbeat(ctx context.Context) {
	w.mu.Lock()
	status := w.state
	live := !w.terminated && (status == types.PresenceStatusOnline || status == types.PresenceStatusBusy)
	userID := w.userID
	w.mu.Unlock()

	if !live {
		return
	}
	w.write(ctx, userID, status)
}

// VisibilityChanged treats a hidden page as idle right away and a visible
// page as activity.
func (w *Writer) VisibilityChanged(ctx context.Context, hidden bool) {
	if !hidden {
		w.Activity(ctx, ActivityVisible)
		return
	}
	w.mu.Lock()
	if w.terminated || w.state != types.PresenceStatusOnline {
		w.mu.Unlock()
		return
	}
	ok := w.transitionLocked(types.PresenceStatusAway)
	userID := w.userID
	w.mu.Unlock()

	if ok {
		w.write(ctx, userID, types.PresenceStatusAway)
	}
}

// Stop is the normal teardown (logout, unmount). It cancels both tickers,
// waits for an in-flight tick to finish and writes offline once.
func (w *Writer) Stop(ctx context.Context) {
	userID, ok, lp := w.terminate()
	stopLoop(lp, true)
	if ok {
		w.write(ctx, userID, types.PresenceStatusOffline)
	}
}

// Unload is the page-close teardown. It shares the terminal guard with Stop
// and hands the offline write to the unload flusher. It does not wait for
// in-flight ticks.
func (w *Writer) Unload() {
	userID, ok, lp := w.terminate()
	stopLoop(lp, false)
	if !ok {
		return
	}
	if w.flusher == nil {
		w.write(context.Background(), userID, types.PresenceStatusOffline)
		return
	}
	if err := w.flusher.Flush(userID); err != nil {
		w.logger.Error("presence unload flush failed", err, "user_id", userID)
	}
}

func (w *Writer) terminate() (uuid.UUID, bool, *loop) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.terminated {
		return uuid.Nil, false, nil
	}
	w.terminated = true
	lp := w.loop
	w.loop = nil
	ok := w.policy.Validate(w.state, types.PresenceStatusOffline) == nil
	if ok {
		w.state = types.PresenceStatusOffline
	}
	return w.userID, ok && w.userID != uuid.Nil, lp
}

func stopLoop(lp *loop, wait bool) {
	if lp == nil {
		return
	}
	lp.heartbeat.Stop()
	lp.idle.Stop()
	close(lp.stop)
	if wait {
		<-lp.done
	}
}

// SetOnline writes online for the current identity.
func (w *Writer) SetOnline(ctx context.Context) { w.set(ctx, types.PresenceStatusOnline) }

// SetAway writes away for the current identity.
func (w *Writer) SetAway(ctx context.Context) { w.set(ctx, types.PresenceStatusAway) }

// SetBusy writes busy for the current identity.
func (w *Writer) SetBusy(ctx context.Context) { w.set(ctx, types.PresenceStatusBusy) }

// SetOffline is terminal for the session, like Stop.
func (w *Writer) SetOffline(ctx context.Context) {
	w.mu.Lock()
	if w.userID == uuid.Nil {
		w.userID = w.identity.CurrentUserID(ctx)
	}
	w.mu.Unlock()
	w.Stop(ctx)
}

func (w *Writer) set(ctx context.Context, status types.PresenceStatus) {
	w.mu.Lock()
	if w.terminated {
		w.mu.Unlock()
		return
	}
	if w.userID == uuid.Nil {
		w.userID = w.identity.CurrentUserID(ctx)
	}
	userID := w.userID
	if userID == uuid.Nil {
		w.mu.Unlock()
		w.logger.Debug("presence write skipped: no identity", "status", status)
		return
	}
	if status == types.PresenceStatusOnline {
		w.lastActivity = w.clock.Now()
	}
	ok := w.transitionLocked(status)
	w.mu.Unlock()

	if ok {
		w.write(ctx, userID, status)
	}
}

func (w *Writer) transitionLocked(target types.PresenceStatus) bool {
	if err := w.policy.Validate(w.state, target); err != nil {
		w.logger.Debug("presence transition rejected", "from", w.state, "to", target)
		return false
	}
	w.state = target
	return true
}

func (w *Writer) write(ctx context.Context, userID uuid.UUID, status types.PresenceStatus) {
	if w.updater == nil {
		w.logger.Debug("presence write skipped: no updater", "status", status)
		return
	}
	err := w.updater.Execute(ctx, command.PresenceUpdateInput{
		UserID:    userID,
		Status:    status,
		Actor:     types.SelfActor(userID),
		Timestamp: w.clock.Now(),
	})
	if err != nil {
		w.logger.Error("presence write failed", err, "user_id", userID, "status", status)
	}
}

// Status returns the local belief without a round trip.
func (w *Writer) Status() types.PresenceStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == types.PresenceStatusUninitialized {
		return types.PresenceStatusOffline
	}
	return w.state
}

// Online reports whether the local session considers itself present.
func (w *Writer) Online() bool {
	return w.Status() != types.PresenceStatusOffline
}

// StatusText is the human label for the local status.
func (w *Writer) StatusText() string {
	return StatusLabel(w.Status())
}

// StatusLabel maps a status to its display label.
func StatusLabel(status types.PresenceStatus) string {
	switch status {
	case types.PresenceStatusOnline:
		return "Online"
	case types.PresenceStatusAway:
		return "Away"
	case types.PresenceStatusBusy:
		return "Busy"
	default:
		return "Offline"
	}
}
