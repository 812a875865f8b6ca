package types

import "github.com/google/uuid"

// ActorRef identifies who is performing a presence command or query. For
// presence writes the actor is the session user itself.
type ActorRef struct {
	ID   uuid.UUID
	Type string
}

// SelfActor returns the actor reference used by a session writing its own
// presence.
func SelfActor(userID uuid.UUID) ActorRef {
	return ActorRef{ID: userID, Type: "self"}
}
