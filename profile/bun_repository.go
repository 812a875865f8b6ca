package profile

import (
	"context"
	"errors"

	"github.com/goliatone/go-presence/pkg/types"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires the Bun-backed presence repository.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*Record]
	Clock      types.Clock
}

type profileStore interface {
	repository.Repository[*Record]
}

// Repository implements types.PresenceRepository using Bun.
type Repository struct {
	profileStore
	db    *bun.DB
	clock types.Clock
}

// NewRepository constructs the default presence repository.
func NewRepository(cfg RepositoryConfig, opts ...RepositoryOption) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("profile: db or repository required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = newRecordRepository(cfg.DB)
	}

	options := applyRepositoryOptions(opts)
	if options.CacheEnabled {
		cached, err := wrapCache(repo, options.CacheConfig)
		if err != nil {
			return nil, err
		}
		repo = cached
	}

	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}

	return &Repository{
		profileStore: repo,
		db:           cfg.DB,
		clock:        clock,
	}, nil
}

var (
	_ repository.Repository[*Record] = (*Repository)(nil)
	_ types.PresenceRepository       = (*Repository)(nil)
)

func newRecordRepository(db *bun.DB) repository.Repository[*Record] {
	return repository.NewRepository(db, repository.ModelHandlers[*Record]{
		NewRecord: func() *Record { return &Record{} },
		GetID: func(rec *Record) uuid.UUID {
			if rec == nil {
				return uuid.Nil
			}
			return rec.UserID
		},
		SetID: func(rec *Record, id uuid.UUID) {
			if rec != nil {
				rec.UserID = id
			}
		},
	})
}

func wrapCache(repo repository.Repository[*Record], cfg *cache.Config) (repository.Repository[*Record], error) {
	if _, ok := repo.(*repositorycache.CachedRepository[*Record]); ok {
		return repo, nil
	}
	conf := cache.DefaultConfig()
	if cfg != nil {
		conf = *cfg
	}
	cacheService, err := cache.NewCacheService(conf)
	if err != nil {
		return nil, err
	}
	return repositorycache.New(repo, cacheService, cache.NewDefaultKeySerializer()), nil
}

// Ping checks the database connection when the repository owns one.
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

// GetPresence returns the presence slice of the user's profile row.
func (r *Repository) GetPresence(ctx context.Context, userID uuid.UUID) (*types.PresenceRecord, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	rec, err := r.Get(ctx, selectUserID(userID))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, types.ErrPresenceNotFound
		}
		return nil, err
	}
	out := toDomain(rec)
	return &out, nil
}

// ListPresence returns the rows found for the supplied ids. Unknown ids are
// skipped rather than reported.
func (r *Repository) ListPresence(ctx context.Context, userIDs []uuid.UUID) ([]types.PresenceRecord, error) {
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	records, _, err := r.List(ctx, selectUserIDs(ids))
	if err != nil {
		return nil, err
	}
	out := make([]types.PresenceRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, toDomain(rec))
	}
	return out, nil
}

// UpdatePresence writes status, last_seen_at and status_updated_at together
// and returns the row before and after the write. Last write wins.
func (r *Repository) UpdatePresence(ctx context.Context, userID uuid.UUID, patch types.PresencePatch) (types.PresenceChange, error) {
	if userID == uuid.Nil {
		return types.PresenceChange{}, types.ErrUserIDRequired
	}
	if !patch.Status.Valid() {
		return types.PresenceChange{}, types.ErrInvalidStatus
	}
	existing, err := r.Get(ctx, selectUserID(userID))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return types.PresenceChange{}, types.ErrPresenceNotFound
		}
		return types.PresenceChange{}, err
	}
	before := toDomain(existing)

	ts := patch.Timestamp
	if ts.IsZero() {
		ts = r.clock.Now()
	}
	rec := &Record{
		UserID:          existing.UserID,
		Status:          string(patch.Status),
		LastSeenAt:      &ts,
		StatusUpdatedAt: ts,
		UpdatedAt:       r.clock.Now(),
	}
	updated, err := r.Update(ctx, rec)
	if err != nil {
		return types.PresenceChange{}, err
	}
	return types.PresenceChange{Before: before, After: toDomain(updated)}, nil
}

// EnsureProfile creates the presence columns for a user that has no profile
// row yet, defaulted to offline with no last-seen timestamp.
func (r *Repository) EnsureProfile(ctx context.Context, userID uuid.UUID) (*types.PresenceRecord, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	existing, err := r.Get(ctx, selectUserID(userID))
	switch {
	case err == nil:
		out := toDomain(existing)
		return &out, nil
	case repository.IsRecordNotFound(err):
		now := r.clock.Now()
		created, err := r.Create(ctx, &Record{
			UserID:          userID,
			Status:          string(types.PresenceStatusOffline),
			StatusUpdatedAt: now,
			UpdatedAt:       now,
		})
		if err != nil {
			return nil, err
		}
		out := toDomain(created)
		return &out, nil
	default:
		return nil, err
	}
}

func selectUserID(userID uuid.UUID) repository.SelectCriteria {
	return repository.SelectBy("user_id", "=", userID.String())
}

func selectUserIDs(ids []uuid.UUID) repository.SelectCriteria {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("user_id IN (?)", bun.In(raw))
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
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

func toDomain(rec *Record) types.PresenceRecord {
	if rec == nil {
		return types.PresenceRecord{}
	}
	out := types.PresenceRecord{
		UserID:          rec.UserID,
		Status:          types.ParsePresenceStatus(rec.Status),
		StatusUpdatedAt: rec.StatusUpdatedAt,
	}
	if rec.LastSeenAt != nil && !rec.LastSeenAt.IsZero() {
		ts := *rec.LastSeenAt
		out.LastSeenAt = &ts
	}
	return out
}
