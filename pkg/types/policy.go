package types

import (
	"fmt"
)

// ErrTransitionNotAllowed reports that the target presence status is not
// reachable from the current session state according to configured policies.
var ErrTransitionNotAllowed = fmt.Errorf("go-presence: presence transition not allowed")

// PresenceStatusUninitialized is the writer state before the first write of
// a session. It is never persisted.
const PresenceStatusUninitialized PresenceStatus = ""

// TransitionPolicy validates session presence transitions.
type TransitionPolicy interface {
	Validate(current, target PresenceStatus) error
	AllowedTargets(current PresenceStatus) []PresenceStatus
}

// StaticTransitionPolicy enforces a fixed transition graph.
type StaticTransitionPolicy struct {
	graph map[PresenceStatus]map[PresenceStatus]struct{}
}

// NewStaticTransitionPolicy creates a policy from a transition graph.
func NewStaticTransitionPolicy(graph map[PresenceStatus][]PresenceStatus) *StaticTransitionPolicy {
	internal := make(map[PresenceStatus]map[PresenceStatus]struct{}, len(graph))
	for from, targets := range graph {
		targetSet := make(map[PresenceStatus]struct{}, len(targets))
		for _, to := range targets {
			if !to.Valid() {
				continue
			}
			targetSet[to] = struct{}{}
		}
		internal[from] = targetSet
	}
	return &StaticTransitionPolicy{graph: internal}
}

// DefaultTransitionPolicy returns the session state machine: an
// uninitialized session may write any status, online⇄away, online/away⇄busy,
// and any live state→offline. Offline is terminal for the session. Self transitions are
// allowed so heartbeats can re-assert the current status.
func DefaultTransitionPolicy() *StaticTransitionPolicy {
	return NewStaticTransitionPolicy(map[PresenceStatus][]PresenceStatus{
		PresenceStatusUninitialized: {PresenceStatusOnline, PresenceStatusAway, PresenceStatusBusy, PresenceStatusOffline},
		PresenceStatusOnline:        {PresenceStatusOnline, PresenceStatusAway, PresenceStatusBusy, PresenceStatusOffline},
		PresenceStatusAway:          {PresenceStatusOnline, PresenceStatusAway, PresenceStatusBusy, PresenceStatusOffline},
		PresenceStatusBusy:          {PresenceStatusOnline, PresenceStatusAway, PresenceStatusBusy, PresenceStatusOffline},
	})
}

// Validate ensures the target is allowed from the current state.
func (p *StaticTransitionPolicy) Validate(current, target PresenceStatus) error {
	if !target.Valid() {
		return ErrTransitionNotAllowed
	}
	targets, ok := p.graph[current]
	if !ok {
		return ErrTransitionNotAllowed
	}
	if _, ok := targets[target]; !ok {
		return ErrTransitionNotAllowed
	}
	return nil
}

// AllowedTargets returns the slice of valid targets from the provided state.
func (p *StaticTransitionPolicy) AllowedTargets(current PresenceStatus) []PresenceStatus {
	targets := p.graph[current]
	if len(targets) == 0 {
		return nil
	}
	out := make([]PresenceStatus, 0, len(targets))
	for target := range targets {
		out = append(out, target)
	}
	return out
}
