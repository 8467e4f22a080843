/*
Copyright 2026 migalsp.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	wsv1 "github.com/migalsp/workschedule-operator/api/v1"
	"github.com/migalsp/workschedule-operator/internal/mutation"
	"github.com/migalsp/workschedule-operator/internal/policy"
	"github.com/migalsp/workschedule-operator/internal/scaling"
)

// DefaultInterval is how often every opted-in workload is re-evaluated.
const DefaultInterval = time.Minute

// Event reasons emitted on workloads
const (
	EventScaledDown       = "ScaledDown"
	EventScaledUp         = "ScaledUp"
	EventScheduleRejected = "ScheduleRejected"
	EventScalingFailed    = "ScalingFailed"
)

// WorkloadReconciler evaluates one kind of workload (Deployment or StatefulSet)
// carrying the policy annotation, once per Interval.
type WorkloadReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Engine   *scaling.Engine
	Recorder record.EventRecorder

	// Kind is scaling.KindDeployment or scaling.KindStatefulSet.
	Kind     string
	Interval time.Duration
}

// +kubebuilder:rbac:groups=apps,resources=deployments;statefulsets,verbs=get;list;watch;patch
// +kubebuilder:rbac:groups=workschedule.kubex.io,resources=workschedules,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch

func (r *WorkloadReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	l := logf.FromContext(ctx)

	obj, err := r.newObject()
	if err != nil {
		return ctrl.Result{}, err
	}
	if err := r.Get(ctx, req.NamespacedName, obj); err != nil {
		if errors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	// The annotation may have been removed since the event was queued.
	if !hasPolicy(obj) {
		return ctrl.Result{}, nil
	}

	w, err := scaling.WorkloadFromObject(obj)
	if err != nil {
		return ctrl.Result{}, err
	}

	d, err := r.Engine.Evaluate(ctx, w)
	if err != nil {
		// The next tick starts from a fresh snapshot, so there is nothing to roll back.
		l.Error(err, "failed to apply scaling decision", "decision", d.String(), "policy", w.Policy)
		r.Recorder.Eventf(obj, corev1.EventTypeWarning, EventScalingFailed, "Applying %s failed: %v", d, err)
		return ctrl.Result{RequeueAfter: r.interval()}, nil
	}

	switch d.Action {
	case scaling.ActionSleep:
		r.Recorder.Eventf(obj, corev1.EventTypeNormal, EventScaledDown,
			"Outside working hours of WorkSchedule %s: scaled from %d to 0", w.Policy, d.Replicas)
	case scaling.ActionWake:
		r.Recorder.Eventf(obj, corev1.EventTypeNormal, EventScaledUp,
			"Within working hours of WorkSchedule %s: restored %d replicas", w.Policy, d.Replicas)
	case scaling.ActionReject:
		r.Recorder.Eventf(obj, corev1.EventTypeWarning, EventScheduleRejected,
			"%s: %v", scaling.ReasonOf(d.Reason), d.Reason)
	}

	return ctrl.Result{RequeueAfter: r.interval()}, nil
}

func (r *WorkloadReconciler) interval() time.Duration {
	if r.Interval <= 0 {
		return DefaultInterval
	}
	return r.Interval
}

func (r *WorkloadReconciler) newObject() (client.Object, error) {
	switch r.Kind {
	case scaling.KindDeployment:
		return &appsv1.Deployment{}, nil
	case scaling.KindStatefulSet:
		return &appsv1.StatefulSet{}, nil
	}
	return nil, fmt.Errorf("unsupported workload kind %q", r.Kind)
}

func hasPolicy(obj client.Object) bool {
	_, ok := obj.GetAnnotations()[wsv1.PolicyAnnotation]
	return ok
}

// SetupWithManager sets up the controller with the Manager.
func (r *WorkloadReconciler) SetupWithManager(mgr ctrl.Manager) error {
	if r.Engine == nil {
		r.Engine = &scaling.Engine{
			Resolver: &policy.ClientResolver{Client: mgr.GetClient()},
			Executor: &mutation.PatchExecutor{Client: mgr.GetClient()},
		}
	}
	if r.Recorder == nil {
		r.Recorder = mgr.GetEventRecorderFor("workschedule-controller")
	}
	obj, err := r.newObject()
	if err != nil {
		return err
	}

	// Status-only updates do not change the decision; the requeue timer covers the rest.
	return ctrl.NewControllerManagedBy(mgr).
		For(obj, builder.WithPredicates(
			predicate.NewPredicateFuncs(hasPolicy),
			predicate.Or[client.Object](predicate.GenerationChangedPredicate{}, predicate.AnnotationChangedPredicate{}),
		)).
		Named(strings.ToLower(r.Kind)).
		Complete(r)
}
