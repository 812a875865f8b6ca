package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
)

type wireRecord struct {
	ID              uuid.UUID  `json:"id"`
	Status          string     `json:"status"`
	LastSeenAt      *time.Time `json:"last_seen_at"`
	StatusUpdatedAt time.Time  `json:"status_updated_at"`
}

type wireEvent struct {
	Table      string      `json:"table"`
	Type       string      `json:"type"`
	CommitTime time.Time   `json:"commit_time"`
	Old        *wireRecord `json:"old,omitempty"`
	New        *wireRecord `json:"new,omitempty"`
}

// Encode serializes a change event into the shared envelope.
func Encode(evt types.ChangeEvent) ([]byte, error) {
	payload := wireEvent{
		Table:      evt.Table,
		Type:       string(evt.Type),
		CommitTime: evt.CommitTime,
	}
	if evt.Old.UserID != uuid.Nil {
		payload.Old = toWire(evt.Old)
	}
	if evt.New.UserID != uuid.Nil {
		payload.New = toWire(evt.New)
	}
	return json.Marshal(payload)
}

// Decode parses the shared envelope. Unknown statuses normalize to offline.
func Decode(raw []byte) (types.ChangeEvent, error) {
	var payload wireEvent
	if err := json.Unmarshal(raw, &payload); err != nil {
		return types.ChangeEvent{}, fmt.Errorf("feed: decode change event: %w", err)
	}
	evt := types.ChangeEvent{
		Table:      payload.Table,
		Type:       types.ChangeEventType(strings.ToUpper(strings.TrimSpace(payload.Type))),
		CommitTime: payload.CommitTime,
	}
	if payload.Old != nil {
		evt.Old = fromWire(*payload.Old)
	}
	if payload.New != nil {
		evt.New = fromWire(*payload.New)
	}
	if evt.Old.UserID == uuid.Nil && evt.New.UserID == uuid.Nil {
		return types.ChangeEvent{}, fmt.Errorf("feed: change event without record id")
	}
	return evt, nil
}

func toWire(rec types.PresenceRecord) *wireRecord {
	return &wireRecord{
		ID:              rec.UserID,
		Status:          string(rec.Status),
		LastSeenAt:      rec.LastSeenAt,
		StatusUpdatedAt: rec.StatusUpdatedAt,
	}
}

func fromWire(rec wireRecord) types.PresenceRecord {
	out := types.PresenceRecord{
		UserID:          rec.ID,
		Status:          types.ParsePresenceStatus(rec.Status),
		StatusUpdatedAt: rec.StatusUpdatedAt,
	}
	if rec.LastSeenAt != nil && !rec.LastSeenAt.IsZero() {
		ts := *rec.LastSeenAt
		out.LastSeenAt = &ts
	}
	return out
}

// dispatch decodes a broker payload and hands it to the listener when it
// passes the filter. Malformed payloads are logged and dropped.
func dispatch(raw []byte, filter types.ChangeFilter, listener types.ChangeListener, logger types.Logger) {
	evt, err := Decode(raw)
	if err != nil {
		logger.Error("dropping malformed presence change", err)
		return
	}
	if !filter.Matches(evt) {
		return
	}
	if listener.OnChange != nil {
		listener.OnChange(evt)
	}
}

func notifyState(listener types.ChangeListener, connected bool, err error) {
	if listener.OnState != nil {
		listener.OnState(connected, err)
	}
}

func safeLogger(logger types.Logger) types.Logger {
	if logger != nil {
		return logger
	}
	return types.NopLogger{}
}
