package feed

import (
	"testing"
	"time"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecode_PostgresTriggerPayload(t *testing.T) {
	id := uuid.New()
	raw := []byte(`{"table":"user_profiles","type":"UPDATE","commit_time":"2025-06-01T10:00:00.123456+00:00",` +
		`"old":{"id":"` + id.String() + `","status":"online","last_seen_at":"2025-06-01T09:59:30+00:00","status_updated_at":"2025-06-01T09:59:30+00:00"},` +
		`"new":{"id":"` + id.String() + `","status":"away","last_seen_at":"2025-06-01T10:00:00.123456+00:00","status_updated_at":"2025-06-01T10:00:00.123456+00:00"}}`)

	evt, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "user_profiles", evt.Table)
	require.Equal(t, types.ChangeEventUpdate, evt.Type)
	require.Equal(t, id, evt.New.UserID)
	require.Equal(t, types.PresenceStatusAway, evt.New.Status)
	require.Equal(t, types.PresenceStatusOnline, evt.Old.Status)
	require.NotNil(t, evt.New.LastSeenAt)
	require.True(t, evt.New.LastSeenAt.Equal(time.Date(2025, 6, 1, 10, 0, 0, 123456000, time.UTC)))
}

func TestDecode_NullLastSeenAndUnknownStatus(t *testing.T) {
	id := uuid.New()
	raw := []byte(`{"table":"user_profiles","type":"update","new":{"id":"` + id.String() + `","status":"ghost","last_seen_at":null,"status_updated_at":"2025-06-01T10:00:00Z"}}`)

	evt, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, types.ChangeEventUpdate, evt.Type)
	require.Equal(t, types.PresenceStatusOffline, evt.New.Status)
	require.Nil(t, evt.New.LastSeenAt)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte("not json"))
	require.Error(t, err)

	_, err = Decode([]byte(`{"table":"user_profiles","type":"UPDATE"}`))
	require.Error(t, err)
}

func TestEncodeDecode_PreservesRecord(t *testing.T) {
	id := uuid.New()
	evt := updateEvent(id, types.PresenceStatusBusy)

	raw, err := Encode(evt)
	require.NoError(t, err)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, evt.New.Status, decoded.New.Status)
	require.True(t, evt.New.LastSeenAt.Equal(*decoded.New.LastSeenAt))
	require.Equal(t, id, decoded.Old.UserID)
}

func TestDispatch_FiltersAndDropsMalformed(t *testing.T) {
	watched := uuid.New()
	var got []types.ChangeEvent
	listener := types.ChangeListener{OnChange: func(evt types.ChangeEvent) { got = append(got, evt) }}
	filter := types.ChangeFilter{Table: "user_profiles", UserIDs: []uuid.UUID{watched}}

	raw, err := Encode(updateEvent(watched, types.PresenceStatusOnline))
	require.NoError(t, err)
	foreign, err := Encode(updateEvent(uuid.New(), types.PresenceStatusOnline))
	require.NoError(t, err)

	dispatch(raw, filter, listener, types.NopLogger{})
	dispatch(foreign, filter, listener, types.NopLogger{})
	dispatch([]byte("{"), filter, listener, types.NopLogger{})

	require.Len(t, got, 1)
	require.Equal(t, watched, got[0].New.UserID)
}
