package scope

import (
	"context"
	"testing"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGuard_OwnerWritePolicy(t *testing.T) {
	g := NewGuard(types.OwnerWritePolicy{})
	owner := uuid.New()
	other := uuid.New()

	require.NoError(t, g.Enforce(context.Background(), types.SelfActor(owner), types.PolicyActionPresenceWrite, owner))
	require.ErrorIs(t, g.Enforce(context.Background(), types.SelfActor(other), types.PolicyActionPresenceWrite, owner), types.ErrUnauthorizedPresenceWrite)
	require.NoError(t, g.Enforce(context.Background(), types.SelfActor(other), types.PolicyActionPresenceRead, owner))
}

func TestGuard_NilPolicyNeverBlocks(t *testing.T) {
	g := Ensure(nil)
	require.NoError(t, g.Enforce(context.Background(), types.ActorRef{}, types.PolicyActionPresenceWrite, uuid.New()))
}
