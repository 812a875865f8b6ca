package command

import (
	"context"
	"time"

	gocommand "github.com/goliatone/go-command"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-presence/pkg/types"
	"github.com/goliatone/go-presence/scope"
	"github.com/google/uuid"
)

// DefaultPresenceTable is the table name carried on published change events.
const DefaultPresenceTable = "user_profiles"

// PresenceCommandConfig wires dependencies for the presence update command.
type PresenceCommandConfig struct {
	Repository  types.PresenceRepository
	Publisher   types.ChangePublisher
	Hooks       types.Hooks
	Clock       types.Clock
	Logger      types.Logger
	ScopeGuard  scope.Guard
	FeatureGate featuregate.FeatureGate
	Table       string
}

// PresenceUpdateInput captures a single presence write for one user.
type PresenceUpdateInput struct {
	UserID uuid.UUID
	Status types.PresenceStatus
	Actor  types.ActorRef
	// Timestamp overrides the write time; zero means now.
	Timestamp time.Time
	Result    *types.PresenceChange
}

// Type implements gocommand.Message.
func (PresenceUpdateInput) Type() string {
	return "command.presence.update"
}

// Validate implements gocommand.Message.
func (input PresenceUpdateInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	if !input.Status.Valid() {
		return ErrStatusInvalid
	}
	return nil
}

// PresenceUpdateCommand writes status, last_seen_at and status_updated_at in
// one update and fans the change out to the configured publisher.
type PresenceUpdateCommand struct {
	repo        types.PresenceRepository
	publisher   types.ChangePublisher
	hooks       types.Hooks
	clock       types.Clock
	logger      types.Logger
	guard       scope.Guard
	featureGate featuregate.FeatureGate
	table       string
}

// NewPresenceUpdateCommand constructs the presence update handler.
func NewPresenceUpdateCommand(cfg PresenceCommandConfig) *PresenceUpdateCommand {
	table := cfg.Table
	if table == "" {
		table = DefaultPresenceTable
	}
	return &PresenceUpdateCommand{
		repo:        cfg.Repository,
		publisher:   cfg.Publisher,
		hooks:       safeHooks(cfg.Hooks),
		clock:       safeClock(cfg.Clock),
		logger:      safeLogger(cfg.Logger),
		guard:       safeScopeGuard(cfg.ScopeGuard),
		featureGate: cfg.FeatureGate,
		table:       table,
	}
}

var _ gocommand.Commander[PresenceUpdateInput] = (*PresenceUpdateCommand)(nil)

// Execute applies the presence write. A publish failure is logged and does
// not fail the command since the row is already updated.
func (c *PresenceUpdateCommand) Execute(ctx context.Context, input PresenceUpdateInput) error {
	if c.repo == nil {
		return types.ErrMissingPresenceRepository
	}
	if err := input.Validate(); err != nil {
		return err
	}
	if err := c.guard.Enforce(ctx, input.Actor, types.PolicyActionPresenceWrite, input.UserID); err != nil {
		return err
	}
	if enabled, err := featureEnabled(ctx, c.featureGate, FeaturePresenceTracking, input.UserID); err != nil {
		return err
	} else if !enabled {
		return ErrPresenceDisabled
	}

	ts := input.Timestamp
	if ts.IsZero() {
		ts = now(c.clock)
	}
	change, err := c.repo.UpdatePresence(ctx, input.UserID, types.PresencePatch{
		Status:    input.Status,
		Timestamp: ts,
	})
	if err != nil {
		return err
	}
	if input.Result != nil {
		*input.Result = change
	}

	if c.publisher != nil {
		evt := types.ChangeEvent{
			Table:      c.table,
			Type:       types.ChangeEventUpdate,
			Old:        change.Before,
			New:        change.After,
			CommitTime: ts,
		}
		if err := c.publisher.Publish(ctx, evt); err != nil {
			c.logger.Error("presence change publish failed", err,
				"user_id", input.UserID,
				"status", input.Status)
		}
	}

	emitPresenceHook(ctx, c.hooks, types.PresenceEvent{
		UserID:     input.UserID,
		ActorID:    input.Actor.ID,
		Change:     change,
		OccurredAt: ts,
	})
	return nil
}
