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
	stderrors "errors"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	"k8s.io/client-go/util/retry"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	wsv1 "github.com/migalsp/workschedule-operator/api/v1"
	"github.com/migalsp/workschedule-operator/internal/policy"
	"github.com/migalsp/workschedule-operator/internal/schedule"
)

// WorkScheduleReconciler reports whether each WorkSchedule declares a usable window.
// It never touches workloads: a changed policy takes effect on their next tick.
type WorkScheduleReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Recorder record.EventRecorder
}

// +kubebuilder:rbac:groups=workschedule.kubex.io,resources=workschedules,verbs=get;list;watch
// +kubebuilder:rbac:groups=workschedule.kubex.io,resources=workschedules/status,verbs=get;update;patch

func (r *WorkScheduleReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	l := logf.FromContext(ctx)

	ws := &wsv1.WorkSchedule{}
	if err := r.Get(ctx, req.NamespacedName, ws); err != nil {
		if errors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	cond := ValidityCondition(ws)
	wasInvalid := meta.IsStatusConditionFalse(ws.Status.Conditions, wsv1.ConditionValid)

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		current := &wsv1.WorkSchedule{}
		if err := r.Get(ctx, req.NamespacedName, current); err != nil {
			return err
		}
		changed := meta.SetStatusCondition(&current.Status.Conditions, cond)
		if !changed && current.Status.ObservedGeneration == current.Generation {
			return nil
		}
		current.Status.ObservedGeneration = current.Generation
		return r.Status().Update(ctx, current)
	})
	if err != nil {
		return ctrl.Result{}, err
	}

	if cond.Status == metav1.ConditionFalse {
		l.Info("WorkSchedule is invalid, workloads referencing it will not be scaled", "reason", cond.Reason, "message", cond.Message)
		if !wasInvalid {
			r.Recorder.Event(ws, corev1.EventTypeWarning, cond.Reason, cond.Message)
		}
	}

	return ctrl.Result{}, nil
}

// ValidityCondition evaluates the Valid condition of a WorkSchedule.
func ValidityCondition(ws *wsv1.WorkSchedule) metav1.Condition {
	cond := metav1.Condition{
		Type:               wsv1.ConditionValid,
		Status:             metav1.ConditionTrue,
		Reason:             wsv1.ReasonValidWindow,
		ObservedGeneration: ws.Generation,
	}

	w, err := policy.WindowOf(ws)
	if err == nil {
		err = w.Validate()
	}
	if err == nil {
		cond.Message = "Active " + w.String()
		return cond
	}

	cond.Status = metav1.ConditionFalse
	cond.Message = err.Error()
	switch {
	case stderrors.Is(err, schedule.ErrInvalidTimeZone):
		cond.Reason = wsv1.ReasonInvalidTimeZone
	case stderrors.Is(err, schedule.ErrInvalidTime):
		cond.Reason = wsv1.ReasonInvalidTime
	default:
		cond.Reason = wsv1.ReasonInvalidWindow
	}
	return cond
}

// SetupWithManager sets up the controller with the Manager.
func (r *WorkScheduleReconciler) SetupWithManager(mgr ctrl.Manager) error {
	if r.Recorder == nil {
		r.Recorder = mgr.GetEventRecorderFor("workschedule-controller")
	}
	return ctrl.NewControllerManagedBy(mgr).
		For(&wsv1.WorkSchedule{}).
		Named("workschedule").
		Complete(r)
}
