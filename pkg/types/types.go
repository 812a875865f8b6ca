package types

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PresenceStatus enumerates the values stored in user_profiles.status.
type PresenceStatus string

const (
	PresenceStatusOnline  PresenceStatus = "online"
	PresenceStatusAway    PresenceStatus = "away"
	PresenceStatusBusy    PresenceStatus = "busy"
	PresenceStatusOffline PresenceStatus = "offline"
)

// ParsePresenceStatus normalizes raw status values. Unknown or empty values
// map to offline so a malformed row never reads as present.
func ParsePresenceStatus(raw string) PresenceStatus {
	switch PresenceStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case PresenceStatusOnline:
		return PresenceStatusOnline
	case PresenceStatusAway:
		return PresenceStatusAway
	case PresenceStatusBusy:
		return PresenceStatusBusy
	default:
		return PresenceStatusOffline
	}
}

// Valid reports whether the status is one of the four known values.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceStatusOnline, PresenceStatusAway, PresenceStatusBusy, PresenceStatusOffline:
		return true
	}
	return false
}

// PresenceRecord is the presence slice of a user profile row.
type PresenceRecord struct {
	UserID          uuid.UUID
	Status          PresenceStatus
	LastSeenAt      *time.Time
	StatusUpdatedAt time.Time
}

// Clone returns a copy whose LastSeenAt pointer is detached from the original.
func (r PresenceRecord) Clone() PresenceRecord {
	out := r
	if r.LastSeenAt != nil {
		ts := *r.LastSeenAt
		out.LastSeenAt = &ts
	}
	return out
}

// PresencePatch is the partial field set written by every presence update.
// LastSeenAt and StatusUpdatedAt always travel together.
type PresencePatch struct {
	Status    PresenceStatus
	Timestamp time.Time
}

// PresenceChange carries the before/after values of an applied update.
type PresenceChange struct {
	Before PresenceRecord
	After  PresenceRecord
}

// PresenceRepository is the row-update and one-shot read primitive used by
// the writer and reader.
type PresenceRepository interface {
	GetPresence(ctx context.Context, userID uuid.UUID) (*PresenceRecord, error)
	ListPresence(ctx context.Context, userIDs []uuid.UUID) ([]PresenceRecord, error)
	UpdatePresence(ctx context.Context, userID uuid.UUID, patch PresencePatch) (PresenceChange, error)
}

// ChangeEventType mirrors the realtime event names of the profile store.
type ChangeEventType string

const (
	ChangeEventInsert ChangeEventType = "INSERT"
	ChangeEventUpdate ChangeEventType = "UPDATE"
	ChangeEventDelete ChangeEventType = "DELETE"
)

// ChangeEvent is a single row change delivered by a ChangeFeed.
type ChangeEvent struct {
	Table      string
	Type       ChangeEventType
	Old        PresenceRecord
	New        PresenceRecord
	CommitTime time.Time
}

// ChangeFilter narrows a subscription. An empty UserIDs set matches nothing;
// subscriptions are always bound to an explicit id set.
type ChangeFilter struct {
	Table   string
	Type    ChangeEventType
	UserIDs []uuid.UUID
}

// Matches reports whether the event passes the filter.
func (f ChangeFilter) Matches(evt ChangeEvent) bool {
	if f.Table != "" && !strings.EqualFold(f.Table, evt.Table) {
		return false
	}
	if f.Type != "" && f.Type != evt.Type {
		return false
	}
	target := evt.New.UserID
	if target == uuid.Nil {
		target = evt.Old.UserID
	}
	for _, id := range f.UserIDs {
		if id == target {
			return true
		}
	}
	return false
}

// ChangeListener receives events and channel state transitions. Either
// callback may be nil.
type ChangeListener struct {
	OnChange func(ChangeEvent)
	OnState  func(connected bool, err error)
}

// ChangeSubscription is the disposer returned by ChangeFeed.Subscribe.
type ChangeSubscription interface {
	Close() error
}

// ChangeFeed is the change-subscription primitive.
type ChangeFeed interface {
	Subscribe(ctx context.Context, filter ChangeFilter, listener ChangeListener) (ChangeSubscription, error)
}

// ChangePublisher pushes applied changes to a feed. Stores with native
// change capture (postgres triggers) do not need one.
type ChangePublisher interface {
	Publish(ctx context.Context, evt ChangeEvent) error
}

// PresenceEvent is handed to hooks after a presence update is applied.
type PresenceEvent struct {
	UserID     uuid.UUID
	ActorID    uuid.UUID
	Change     PresenceChange
	OccurredAt time.Time
}

// Hooks groups optional callbacks invoked after presence workflows complete.
type Hooks struct {
	AfterPresenceChange func(context.Context, PresenceEvent)
}

// IdentityResolver returns the user bound to the current session. uuid.Nil
// means no authenticated user.
type IdentityResolver interface {
	CurrentUserID(ctx context.Context) uuid.UUID
}

// IdentityFunc adapts bare functions to IdentityResolver.
type IdentityFunc func(ctx context.Context) uuid.UUID

// CurrentUserID implements IdentityResolver.
func (f IdentityFunc) CurrentUserID(ctx context.Context) uuid.UUID {
	if f == nil {
		return uuid.Nil
	}
	return f(ctx)
}

// StaticIdentity always resolves to the same user.
type StaticIdentity uuid.UUID

// CurrentUserID implements IdentityResolver.
func (s StaticIdentity) CurrentUserID(context.Context) uuid.UUID {
	return uuid.UUID(s)
}

// Clock abstracts time retrieval for deterministic testing.
type Clock interface {
	Now() time.Time
}

// Logger captures basic logging hooks used by the service.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
}

// SystemClock defers to time.Now for production usage.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// NopLogger discards all log lines.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(string, error, ...any) {}

var (
	// ErrActorRequired indicates an actor reference was not supplied.
	ErrActorRequired = errors.New("go-presence: actor reference required")
	// ErrUserIDRequired indicates a user identifier was omitted.
	ErrUserIDRequired = errors.New("go-presence: user id required")
	// ErrInvalidStatus indicates a status outside the presence enum.
	ErrInvalidStatus = errors.New("go-presence: invalid presence status")
	// ErrPresenceNotFound indicates no profile row exists for the user.
	ErrPresenceNotFound = errors.New("go-presence: presence record not found")
	// ErrPresenceDisabled indicates presence tracking is switched off for the user.
	ErrPresenceDisabled = errors.New("go-presence: presence tracking disabled")
	// ErrServiceNotReady indicates the service has not been properly configured.
	ErrServiceNotReady = errors.New("go-presence: service not ready")
	// ErrMissingPresenceRepository occurs when no presence repository was supplied.
	ErrMissingPresenceRepository = errors.New("go-presence: missing presence repository")
	// ErrMissingChangeFeed occurs when a reader is built without a change feed.
	ErrMissingChangeFeed = errors.New("go-presence: missing change feed")
	// ErrFeedClosed indicates the feed no longer accepts subscriptions.
	ErrFeedClosed = errors.New("go-presence: change feed closed")
)
