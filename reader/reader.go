package reader

import (
	"context"
	"sync"
	"time"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-presence/pkg/types"
	"github.com/goliatone/go-presence/query"
	"github.com/google/uuid"
)

// DefaultFreshnessWindow matches the writer's idle threshold so an idle
// session and a stale session degrade at the same time.
const DefaultFreshnessWindow = 5 * time.Minute

// Config wires a Reader.
type Config struct {
	Status gocommand.Querier[query.PresenceQueryInput, *types.PresenceRecord]
	Batch  gocommand.Querier[query.PresenceBatchQueryInput, []types.PresenceRecord]
	Feed   types.ChangeFeed
	// Viewer is the actor the reads are authorized for.
	Viewer          types.ActorRef
	Table           string
	FreshnessWindow time.Duration
	Clock           types.Clock
	Logger          types.Logger
}

// Reader caches the last known presence per user. It is safe for concurrent
// use; feed callbacks and display helpers may run on different goroutines.
type Reader struct {
	status gocommand.Querier[query.PresenceQueryInput, *types.PresenceRecord]
	batch  gocommand.Querier[query.PresenceBatchQueryInput, []types.PresenceRecord]
	feed   types.ChangeFeed
	viewer types.ActorRef
	table  string
	window time.Duration
	clock  types.Clock
	logger types.Logger

	mu        sync.RWMutex
	cache     map[uuid.UUID]types.PresenceRecord
	connected bool
	lastErr   error
}

// New builds a Reader. The feed is optional for callers that only need
// one-shot reads; Subscribe reports ErrMissingChangeFeed without it.
func New(cfg Config) (*Reader, error) {
	if cfg.Status == nil || cfg.Batch == nil {
		return nil, types.ErrServiceNotReady
	}
	table := cfg.Table
	if table == "" {
		table = "user_profiles"
	}
	window := cfg.FreshnessWindow
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Reader{
		status: cfg.Status,
		batch:  cfg.Batch,
		feed:   cfg.Feed,
		viewer: cfg.Viewer,
		table:  table,
		window: window,
		clock:  clock,
		logger: logger,
		cache:  make(map[uuid.UUID]types.PresenceRecord),
	}, nil
}

// GetStatus fetches one user's presence and refreshes the cache.
func (r *Reader) GetStatus(ctx context.Context, userID uuid.UUID) (*types.PresenceRecord, error) {
	rec, err := r.status.Query(ctx, query.PresenceQueryInput{
		UserID: userID,
		Actor:  r.viewer,
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, types.ErrPresenceNotFound
	}
	normalized := normalize(*rec)
	r.store(normalized)
	return &normalized, nil
}

// GetMultipleStatus fetches many users in one round trip. Ids without a
// profile row are absent from the result.
func (r *Reader) GetMultipleStatus(ctx context.Context, userIDs []uuid.UUID) ([]types.PresenceRecord, error) {
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	records, err := r.batch.Query(ctx, query.PresenceBatchQueryInput{
		UserIDs: ids,
		Actor:   r.viewer,
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.PresenceRecord, 0, len(records))
	for _, rec := range records {
		normalized := normalize(rec)
		r.store(normalized)
		out = append(out, normalized)
	}
	return out, nil
}

// Cached returns the last known record for the user.
func (r *Reader) Cached(userID uuid.UUID) (types.PresenceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.cache[userID]
	if !ok {
		return types.PresenceRecord{}, false
	}
	return rec.Clone(), true
}

// Connected reports whether the change feed is currently delivering.
func (r *Reader) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// Err returns the last channel error, cleared on reconnect.
func (r *Reader) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func (r *Reader) setState(connected bool, err error) {
	r.mu.Lock()
	r.connected = connected
	if connected {
		r.lastErr = nil
	} else if err != nil {
		r.lastErr = err
	}
	r.mu.Unlock()
	if err != nil {
		r.logger.Error("presence change feed error", err, "table", r.table)
	}
}

// store keeps the newest record per user. Records older than the cached one
// are dropped and store reports false.
func (r *Reader) store(rec types.PresenceRecord) bool {
	if rec.UserID == uuid.Nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.cache[rec.UserID]; ok && current.StatusUpdatedAt.After(rec.StatusUpdatedAt) {
		return false
	}
	r.cache[rec.UserID] = rec.Clone()
	return true
}

func normalize(rec types.PresenceRecord) types.PresenceRecord {
	out := rec.Clone()
	out.Status = types.ParsePresenceStatus(string(rec.Status))
	return out
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
