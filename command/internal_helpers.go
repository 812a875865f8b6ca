package command

import (
	"context"
	"time"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/goliatone/go-presence/scope"
)

func safeClock(clock types.Clock) types.Clock {
	if clock != nil {
		return clock
	}
	return types.SystemClock{}
}

func safeLogger(logger types.Logger) types.Logger {
	if logger != nil {
		return logger
	}
	return types.NopLogger{}
}

func safeHooks(hooks types.Hooks) types.Hooks {
	return hooks
}

func safeScopeGuard(g scope.Guard) scope.Guard {
	return scope.Ensure(g)
}

func now(clock types.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now()
}

func emitPresenceHook(ctx context.Context, hooks types.Hooks, event types.PresenceEvent) {
	if hooks.AfterPresenceChange == nil {
		return
	}
	hooks.AfterPresenceChange(ctx, event)
}
