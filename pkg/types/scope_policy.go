package types

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// PolicyAction enumerates the authorization actions enforced by the presence
// guard. Host applications can remap these actions to their own policies.
type PolicyAction string

const (
	PolicyActionPresenceRead  PolicyAction = "presence:read"
	PolicyActionPresenceWrite PolicyAction = "presence:write"
)

// PolicyCheck captures the authorization context for a single command/query.
type PolicyCheck struct {
	Actor    ActorRef
	Action   PolicyAction
	TargetID uuid.UUID
}

// AuthorizationPolicy governs whether an actor can perform the action on the
// target user's presence.
type AuthorizationPolicy interface {
	Authorize(ctx context.Context, check PolicyCheck) error
}

// AuthorizationPolicyFunc adapts bare functions to AuthorizationPolicy.
type AuthorizationPolicyFunc func(ctx context.Context, check PolicyCheck) error

// Authorize implements AuthorizationPolicy.
func (f AuthorizationPolicyFunc) Authorize(ctx context.Context, check PolicyCheck) error {
	return f(ctx, check)
}

var (
	// ErrUnauthorizedPresenceWrite indicates an actor tried to write another
	// user's presence fields.
	ErrUnauthorizedPresenceWrite = errors.New("go-presence: actor may only write its own presence")
)

// OwnerWritePolicy lets anyone read presence but only the owning user write it.
type OwnerWritePolicy struct{}

// Authorize implements AuthorizationPolicy.
func (OwnerWritePolicy) Authorize(_ context.Context, check PolicyCheck) error {
	if check.Action != PolicyActionPresenceWrite {
		return nil
	}
	if check.Actor.ID == uuid.Nil || check.Actor.ID != check.TargetID {
		return ErrUnauthorizedPresenceWrite
	}
	return nil
}

// AllowAllAuthorizationPolicy allows every action.
type AllowAllAuthorizationPolicy struct{}

// Authorize implements AuthorizationPolicy.
func (AllowAllAuthorizationPolicy) Authorize(context.Context, PolicyCheck) error {
	return nil
}
