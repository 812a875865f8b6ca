package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-presence/pkg/types"
	"github.com/goliatone/go-presence/scope"
	"github.com/google/uuid"
)

// PresenceQueryInput identifies the user whose presence is requested.
type PresenceQueryInput struct {
	UserID uuid.UUID
	Actor  types.ActorRef
}

// Type implements gocommand.Message.
func (PresenceQueryInput) Type() string {
	return "query.presence.get"
}

// Validate implements gocommand.Message.
func (input PresenceQueryInput) Validate() error {
	if input.UserID == uuid.Nil {
		return types.ErrUserIDRequired
	}
	return nil
}

// PresenceQuery fetches the raw presence fields of one user.
type PresenceQuery struct {
	repo  types.PresenceRepository
	guard scope.Guard
}

// NewPresenceQuery constructs the single-user presence query.
func NewPresenceQuery(repo types.PresenceRepository, guard scope.Guard) *PresenceQuery {
	return &PresenceQuery{
		repo:  repo,
		guard: safeScopeGuard(guard),
	}
}

var _ gocommand.Querier[PresenceQueryInput, *types.PresenceRecord] = (*PresenceQuery)(nil)

// Query returns the presence record or the repository error.
func (q *PresenceQuery) Query(ctx context.Context, input PresenceQueryInput) (*types.PresenceRecord, error) {
	if q.repo == nil {
		return nil, types.ErrMissingPresenceRepository
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := q.guard.Enforce(ctx, input.Actor, types.PolicyActionPresenceRead, input.UserID); err != nil {
		return nil, err
	}
	return q.repo.GetPresence(ctx, input.UserID)
}

// PresenceBatchQueryInput lists the users whose presence is requested.
type PresenceBatchQueryInput struct {
	UserIDs []uuid.UUID
	Actor   types.ActorRef
}

// Type implements gocommand.Message.
func (PresenceBatchQueryInput) Type() string {
	return "query.presence.batch"
}

// Validate implements gocommand.Message.
func (input PresenceBatchQueryInput) Validate() error {
	for _, id := range input.UserIDs {
		if id == uuid.Nil {
			return types.ErrUserIDRequired
		}
	}
	return nil
}

// PresenceBatchQuery fetches presence for many users in one round trip.
type PresenceBatchQuery struct {
	repo  types.PresenceRepository
	guard scope.Guard
}

// NewPresenceBatchQuery constructs the multi-user presence query.
func NewPresenceBatchQuery(repo types.PresenceRepository, guard scope.Guard) *PresenceBatchQuery {
	return &PresenceBatchQuery{
		repo:  repo,
		guard: safeScopeGuard(guard),
	}
}

var _ gocommand.Querier[PresenceBatchQueryInput, []types.PresenceRecord] = (*PresenceBatchQuery)(nil)

// Query returns the records found for the requested ids. Unknown ids are
// absent from the result.
func (q *PresenceBatchQuery) Query(ctx context.Context, input PresenceBatchQueryInput) ([]types.PresenceRecord, error) {
	if q.repo == nil {
		return nil, types.ErrMissingPresenceRepository
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if len(input.UserIDs) == 0 {
		return nil, nil
	}
	for _, id := range input.UserIDs {
		if err := q.guard.Enforce(ctx, input.Actor, types.PolicyActionPresenceRead, id); err != nil {
			return nil, err
		}
	}
	return q.repo.ListPresence(ctx, input.UserIDs)
}
