package scaling

import (
	"fmt"
	"time"

	"github.com/migalsp/workschedule-operator/internal/schedule"
)

// Action is the transition chosen for a workload on one evaluation.
type Action string

const (
	ActionNoOp   Action = "NoOp"
	ActionSleep  Action = "Sleep"
	ActionWake   Action = "Wake"
	ActionReject Action = "Reject"
)

// Actions returns every Action as a metric label.
func Actions() []string {
	return []string{string(ActionNoOp), string(ActionSleep), string(ActionWake), string(ActionReject)}
}

// Decision is the outcome of Decide.
// For Sleep, Replicas is the count to save before scaling to zero.
// For Wake, Replicas is the count to restore.
// For Reject, Reason explains why no mutation is allowed.
type Decision struct {
	Action   Action
	Replicas int32
	Reason   error
}

func (d Decision) String() string {
	switch d.Action {
	case ActionSleep, ActionWake:
		return fmt.Sprintf("%s(%d)", d.Action, d.Replicas)
	case ActionReject:
		return fmt.Sprintf("%s(%v)", d.Action, d.Reason)
	default:
		return string(d.Action)
	}
}

// Mutates reports whether applying the decision writes to the workload.
func (d Decision) Mutates() bool {
	return d.Action == ActionSleep || d.Action == ActionWake
}

func NoOp() Decision { return Decision{Action: ActionNoOp} }

func Sleep(save int32) Decision { return Decision{Action: ActionSleep, Replicas: save} }

func Wake(restore int32) Decision { return Decision{Action: ActionWake, Replicas: restore} }

func Reject(reason error) Decision { return Decision{Action: ActionReject, Reason: reason} }

// Decide computes the transition for a workload with current replicas and an
// optional saved replica count, given the policy window and the evaluation instant.
// It performs no I/O and is safe to call repeatedly: once its output has been
// applied, evaluating again at the same instant yields NoOp.
func Decide(policy *schedule.Window, now time.Time, current int32, saved *int32) Decision {
	if policy == nil {
		return Reject(ErrPolicyNotFound)
	}
	if err := policy.Validate(); err != nil {
		return Reject(fmt.Errorf("%w: %w", ErrPolicyInvalid, err))
	}

	if !policy.Contains(now) {
		if current == 0 {
			// Already asleep. Saving again would overwrite the real count with zero.
			return NoOp()
		}
		return Sleep(current)
	}

	if current > 0 {
		return NoOp()
	}
	if saved == nil {
		return Reject(ErrMissingSavedState)
	}
	if *saved <= 0 {
		return Reject(fmt.Errorf("%w: %d", ErrInvalidSavedState, *saved))
	}
	return Wake(*saved)
}
