package scaling

import (
	"errors"
)

// Evaluation errors. All of them are non-fatal: the workload is evaluated
// again on the next tick.
var (
	// ErrPolicyNotFound is returned when the referenced WorkSchedule does not exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrPolicyUnavailable is returned when the WorkSchedule could not be read.
	ErrPolicyUnavailable = errors.New("policy unavailable")

	// ErrPolicyInvalid is returned for authoring errors: unparsable bounds,
	// unknown timezone, or an end time not strictly after the start time.
	ErrPolicyInvalid = errors.New("invalid policy")

	// ErrMissingSavedState is returned when a sleeping workload has no recorded
	// replica count to wake up to. It is never resolved automatically.
	ErrMissingSavedState = errors.New("no saved replica count")

	// ErrInvalidSavedState is returned when the recorded replica count is present
	// but unusable (not a positive integer).
	ErrInvalidSavedState = errors.New("invalid saved replica count")

	// ErrMutationFailure is returned when a patch against the workload was rejected.
	ErrMutationFailure = errors.New("mutation failed")
)

// ReasonOf maps an evaluation error to a short, stable label for metrics and events.
func ReasonOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPolicyNotFound):
		return "PolicyNotFound"
	case errors.Is(err, ErrPolicyUnavailable):
		return "PolicyUnavailable"
	case errors.Is(err, ErrPolicyInvalid):
		return "PolicyInvalid"
	// Before ErrMissingSavedState: Plan wraps both when the annotation is unparsable.
	case errors.Is(err, ErrInvalidSavedState):
		return "InvalidSavedState"
	case errors.Is(err, ErrMissingSavedState):
		return "MissingSavedState"
	case errors.Is(err, ErrMutationFailure):
		return "MutationFailure"
	default:
		return "Unknown"
	}
}

// RejectionReasons lists the labels ReasonOf can return for a Reject decision.
func RejectionReasons() []string {
	return []string{"PolicyNotFound", "PolicyUnavailable", "PolicyInvalid", "InvalidSavedState", "MissingSavedState"}
}
