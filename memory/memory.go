// Package memory provides an in-memory presence repository for examples and
// tests. It is safe for concurrent use.
package memory

import (
	"context"
	"sync"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
)

// Update records a single UpdatePresence call.
type Update struct {
	UserID uuid.UUID
	Patch  types.PresencePatch
}

// PresenceRepository is an in-memory types.PresenceRepository.
type PresenceRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]types.PresenceRecord
	updates []Update
	failErr error
}

// NewPresenceRepository provisions an empty repository.
func NewPresenceRepository() *PresenceRepository {
	return &PresenceRepository{
		records: make(map[uuid.UUID]types.PresenceRecord),
	}
}

var _ types.PresenceRepository = (*PresenceRepository)(nil)

// Seed stores the record as-is, replacing any previous row.
func (r *PresenceRepository) Seed(rec types.PresenceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.UserID] = rec.Clone()
}

// EnsureProfile creates an offline row for the user when none exists.
func (r *PresenceRepository) EnsureProfile(_ context.Context, userID uuid.UUID) (*types.PresenceRecord, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		rec = types.PresenceRecord{UserID: userID, Status: types.PresenceStatusOffline}
		r.records[userID] = rec
	}
	out := rec.Clone()
	return &out, nil
}

// FailWith makes every subsequent write return err. Pass nil to recover.
func (r *PresenceRepository) FailWith(err error) {
	r.mu.Lock()
	r.failErr = err
	r.mu.Unlock()
}

// Updates returns a copy of the write log, failed writes included.
func (r *PresenceRepository) Updates() []Update {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Update, len(r.updates))
	copy(out, r.updates)
	return out
}

// Statuses returns the status of every recorded write, in order.
func (r *PresenceRepository) Statuses() []types.PresenceStatus {
	updates := r.Updates()
	out := make([]types.PresenceStatus, 0, len(updates))
	for _, u := range updates {
		out = append(out, u.Patch.Status)
	}
	return out
}

func (r *PresenceRepository) GetPresence(_ context.Context, userID uuid.UUID) (*types.PresenceRecord, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[userID]
	if !ok {
		return nil, types.ErrPresenceNotFound
	}
	out := rec.Clone()
	return &out, nil
}

func (r *PresenceRepository) ListPresence(_ context.Context, userIDs []uuid.UUID) ([]types.PresenceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	out := make([]types.PresenceRecord, 0, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := r.records[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (r *PresenceRepository) UpdatePresence(_ context.Context, userID uuid.UUID, patch types.PresencePatch) (types.PresenceChange, error) {
	if userID == uuid.Nil {
		return types.PresenceChange{}, types.ErrUserIDRequired
	}
	if !patch.Status.Valid() {
		return types.PresenceChange{}, types.ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, Update{UserID: userID, Patch: patch})
	if r.failErr != nil {
		return types.PresenceChange{}, r.failErr
	}
	before, ok := r.records[userID]
	if !ok {
		return types.PresenceChange{}, types.ErrPresenceNotFound
	}
	ts := patch.Timestamp
	after := types.PresenceRecord{
		UserID:          userID,
		Status:          patch.Status,
		LastSeenAt:      &ts,
		StatusUpdatedAt: ts,
	}
	r.records[userID] = after
	return types.PresenceChange{Before: before.Clone(), After: after.Clone()}, nil
}
