package reader

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
)

const (
	ActiveNowText = "active now"
	NeverSeenText = "never"
	// LastSeenDateLayout formats anything older than a week.
	LastSeenDateLayout = "Jan 2, 2006"
)

// Colors returned by StatusColor and DetailedStatusColor.
const (
	ColorOnline  = "green"
	ColorAway    = "yellow"
	ColorBusy    = "red"
	ColorOffline = "gray"
)

var lastSeenBands = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: time.Minute},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: time.Hour},
	{D: 24 * time.Hour, Format: "%d hours %s", DivBy: time.Hour},
	{D: 48 * time.Hour, Format: "1 day %s", DivBy: 24 * time.Hour},
	{D: 7 * 24 * time.Hour, Format: "%d days %s", DivBy: 24 * time.Hour},
}

// IsOnline reports whether the user is present: the cached status is not
// offline and last_seen_at falls inside the freshness window. Unknown users
// read as offline.
func (r *Reader) IsOnline(userID uuid.UUID) bool {
	rec, ok := r.Cached(userID)
	if !ok {
		return false
	}
	return r.fresh(rec)
}

func (r *Reader) fresh(rec types.PresenceRecord) bool {
	if rec.Status == types.PresenceStatusOffline || rec.LastSeenAt == nil {
		return false
	}
	return r.clock.Now().Sub(*rec.LastSeenAt) <= r.window
}

// FormatLastSeen renders the recency of the user's last activity.
func (r *Reader) FormatLastSeen(userID uuid.UUID) string {
	rec, ok := r.Cached(userID)
	if !ok || rec.LastSeenAt == nil {
		return NeverSeenText
	}
	if r.fresh(rec) {
		return ActiveNowText
	}
	return formatSince(*rec.LastSeenAt, r.clock.Now())
}

func formatSince(seen, now time.Time) string {
	if !seen.Before(now) {
		return "just now"
	}
	if now.Sub(seen) >= 7*24*time.Hour {
		return seen.Format(LastSeenDateLayout)
	}
	return humanize.CustomRelTime(seen, now, "ago", "from now", lastSeenBands)
}

// StatusColor collapses presence to two colors: ColorOnline when IsOnline,
// ColorOffline otherwise. Away and busy users render as online. Use
// DetailedStatusColor to keep the four states apart.
func (r *Reader) StatusColor(userID uuid.UUID) string {
	if r.IsOnline(userID) {
		return ColorOnline
	}
	return ColorOffline
}

// DetailedStatusColor maps each status to its own color. Stale claims still
// read as offline.
func (r *Reader) DetailedStatusColor(userID uuid.UUID) string {
	rec, ok := r.Cached(userID)
	if !ok || !r.fresh(rec) {
		return ColorOffline
	}
	switch rec.Status {
	case types.PresenceStatusOnline:
		return ColorOnline
	case types.PresenceStatusAway:
		return ColorAway
	case types.PresenceStatusBusy:
		return ColorBusy
	default:
		return ColorOffline
	}
}
