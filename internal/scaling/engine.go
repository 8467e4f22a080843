package scaling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/migalsp/workschedule-operator/internal/metrics"
	"github.com/migalsp/workschedule-operator/internal/schedule"
)

// PolicyResolver looks up the window of a WorkSchedule by name.
// Errors wrap ErrPolicyNotFound, ErrPolicyUnavailable or ErrPolicyInvalid.
type PolicyResolver interface {
	Resolve(ctx context.Context, name string) (*schedule.Window, error)
}

// MutationExecutor applies the writes a decision requires. Each call is a
// separate, non-transactional patch.
type MutationExecutor interface {
	// SaveReplicas records n as the replica count to restore on wake.
	SaveReplicas(ctx context.Context, w Workload, n int32) error
	// SetReplicas sets the live replica count.
	SetReplicas(ctx context.Context, w Workload, n int32) error
}

type Engine struct {
	Resolver PolicyResolver
	Executor MutationExecutor

	// Now returns the evaluation instant. Defaults to time.Now.
	Now func() time.Time
	// Locks serializes evaluations of the same workload. Created on first use if nil.
	Locks *KeyedMutex
	// Metrics defaults to metrics.Nop.
	Metrics metrics.Recorder

	once sync.Once
}

func (e *Engine) defaults() {
	e.once.Do(func() {
		if e.Now == nil {
			e.Now = time.Now
		}
		if e.Locks == nil {
			e.Locks = NewKeyedMutex()
		}
		if e.Metrics == nil {
			e.Metrics = metrics.Nop{}
		}
	})
}

// Plan resolves the workload's policy and decides what to do without writing anything.
func (e *Engine) Plan(ctx context.Context, w Workload) Decision {
	e.defaults()

	if w.Policy == "" {
		return Reject(ErrPolicyNotFound)
	}
	policy, err := e.Resolver.Resolve(ctx, w.Policy)
	if err != nil {
		return Reject(err)
	}

	d := Decide(policy, e.Now(), w.Replicas, w.Saved)
	if d.Action == ActionReject && w.SavedErr != nil && w.Saved == nil {
		d.Reason = fmt.Errorf("%w: %w", d.Reason, w.SavedErr)
	}
	return d
}

// Evaluate decides and applies the transition for one workload.
//
// Rejections are returned as a Decision with a nil error; the caller only logs
// them. The error is non-nil only when a patch failed, and wraps ErrMutationFailure.
// Evaluations of the same workload never overlap.
func (e *Engine) Evaluate(ctx context.Context, w Workload) (Decision, error) {
	e.defaults()
	l := log.FromContext(ctx).WithValues("workload", w.Key(), "policy", w.Policy)

	unlock := e.Locks.Lock(w.Key())
	defer unlock()

	start := time.Now()
	defer func() { e.Metrics.ObserveEvaluation(time.Since(start).Seconds()) }()

	d := e.Plan(ctx, w)
	e.Metrics.RecordDecision(string(d.Action))

	switch d.Action {
	case ActionNoOp:
		l.V(1).Info("Workload already in desired state", "replicas", w.Replicas)

	case ActionReject:
		e.Metrics.RecordRejection(ReasonOf(d.Reason))
		l.Info("Skipping workload", "reason", d.Reason.Error())

	case ActionSleep:
		l.Info("Outside working hours, scaling down", "from", w.Replicas)
		// The saved count must be durable before the workload reaches zero.
		if err := e.Executor.SaveReplicas(ctx, w, d.Replicas); err != nil {
			return d, e.mutationFailed(w, fmt.Errorf("saving replica count %d: %w", d.Replicas, err))
		}
		if err := e.Executor.SetReplicas(ctx, w, 0); err != nil {
			return d, e.mutationFailed(w, fmt.Errorf("scaling to 0: %w", err))
		}

	case ActionWake:
		l.Info("Within working hours, restoring replicas", "to", d.Replicas)
		if err := e.Executor.SetReplicas(ctx, w, d.Replicas); err != nil {
			return d, e.mutationFailed(w, fmt.Errorf("scaling to %d: %w", d.Replicas, err))
		}
	}

	return d, nil
}

func (e *Engine) mutationFailed(w Workload, err error) error {
	e.Metrics.RecordMutationFailure(w.Kind)
	return fmt.Errorf("%w: %s: %w", ErrMutationFailure, w.Key(), err)
}
