package profile

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Record models the presence columns of the user_profiles row. Other profile
// columns are owned by the host application and are never touched here.
type Record struct {
	bun.BaseModel `bun:"table:user_profiles"`

	UserID          uuid.UUID  `bun:"user_id,pk,type:uuid"`
	Status          string     `bun:"status"`
	LastSeenAt      *time.Time `bun:"last_seen_at,nullzero"`
	StatusUpdatedAt time.Time  `bun:"status_updated_at"`
	UpdatedAt       time.Time  `bun:"updated_at"`
}
