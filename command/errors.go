package command

import (
	"github.com/goliatone/go-presence/pkg/types"
)

var (
	// ErrActorRequired indicates an actor reference was not supplied.
	ErrActorRequired = types.ErrActorRequired
	// ErrUserIDRequired occurs when a presence command omits the user.
	ErrUserIDRequired = types.ErrUserIDRequired
	// ErrStatusInvalid indicates the requested status is not a presence value.
	ErrStatusInvalid = types.ErrInvalidStatus
	// ErrPresenceDisabled indicates presence tracking is disabled via feature gate.
	ErrPresenceDisabled = types.ErrPresenceDisabled
)
