package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversOnlyMatchingEvents(t *testing.T) {
	hub := NewHub()
	watched := uuid.New()

	var got []types.ChangeEvent
	var states []bool
	sub, err := hub.Subscribe(context.Background(), types.ChangeFilter{
		Table:   "user_profiles",
		Type:    types.ChangeEventUpdate,
		UserIDs: []uuid.UUID{watched},
	}, types.ChangeListener{
		OnChange: func(evt types.ChangeEvent) { got = append(got, evt) },
		OnState:  func(connected bool, _ error) { states = append(states, connected) },
	})
	require.NoError(t, err)
	require.Equal(t, []bool{true}, states)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, updateEvent(watched, types.PresenceStatusOnline)))
	require.NoError(t, hub.Publish(ctx, updateEvent(uuid.New(), types.PresenceStatusOnline)))
	other := updateEvent(watched, types.PresenceStatusAway)
	other.Table = "messages"
	require.NoError(t, hub.Publish(ctx, other))

	require.Len(t, got, 1)
	require.Equal(t, types.PresenceStatusOnline, got[0].New.Status)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.Equal(t, 0, hub.Subscribers())

	require.NoError(t, hub.Publish(ctx, updateEvent(watched, types.PresenceStatusOffline)))
	require.Len(t, got, 1)
}

func TestHub_EmptyFilterMatchesNothing(t *testing.T) {
	hub := NewHub()
	called := false
	_, err := hub.Subscribe(context.Background(), types.ChangeFilter{}, types.ChangeListener{
		OnChange: func(types.ChangeEvent) { called = true },
	})
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), updateEvent(uuid.New(), types.PresenceStatusOnline)))
	require.False(t, called)
}

func TestHub_FailRecoverAndClose(t *testing.T) {
	hub := NewHub()
	var lastConnected bool
	var lastErr error
	_, err := hub.Subscribe(context.Background(), types.ChangeFilter{UserIDs: []uuid.UUID{uuid.New()}}, types.ChangeListener{
		OnState: func(connected bool, err error) {
			lastConnected = connected
			lastErr = err
		},
	})
	require.NoError(t, err)

	boom := errors.New("socket closed")
	hub.Fail(boom)
	require.False(t, lastConnected)
	require.ErrorIs(t, lastErr, boom)

	hub.Recover()
	require.True(t, lastConnected)
	require.NoError(t, lastErr)

	require.NoError(t, hub.Close())
	require.False(t, lastConnected)
	require.ErrorIs(t, lastErr, types.ErrFeedClosed)

	_, err = hub.Subscribe(context.Background(), types.ChangeFilter{}, types.ChangeListener{})
	require.ErrorIs(t, err, types.ErrFeedClosed)
}

func updateEvent(id uuid.UUID, status types.PresenceStatus) types.ChangeEvent {
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return types.ChangeEvent{
		Table: "user_profiles",
		Type:  types.ChangeEventUpdate,
		Old:   types.PresenceRecord{UserID: id, Status: types.PresenceStatusOffline},
		New: types.PresenceRecord{
			UserID:          id,
			Status:          status,
			LastSeenAt:      &ts,
			StatusUpdatedAt: ts,
		},
		CommitTime: ts,
	}
}
