package policy

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	wsv1 "github.com/migalsp/workschedule-operator/api/v1"
	"github.com/migalsp/workschedule-operator/internal/scaling"
	"github.com/migalsp/workschedule-operator/internal/schedule"
)

// ClientResolver reads cluster-scoped WorkSchedule objects through a controller-runtime reader.
// With the manager's client the reads are served from the informer cache.
type ClientResolver struct {
	Client client.Reader
}

var _ scaling.PolicyResolver = (*ClientResolver)(nil)

// Resolve fetches the WorkSchedule and parses its window. The window is
// returned unvalidated so the decision engine re-checks it on every evaluation.
func (r *ClientResolver) Resolve(ctx context.Context, name string) (*schedule.Window, error) {
	ws := &wsv1.WorkSchedule{}
	if err := r.Client.Get(ctx, client.ObjectKey{Name: name}, ws); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: WorkSchedule %q", scaling.ErrPolicyNotFound, name)
		}
		return nil, fmt.Errorf("%w: WorkSchedule %q: %w", scaling.ErrPolicyUnavailable, name, err)
	}
	return WindowOf(ws)
}

// WindowOf parses the window declared by a WorkSchedule.
func WindowOf(ws *wsv1.WorkSchedule) (*schedule.Window, error) {
	w, err := schedule.NewWindow(ws.Spec.StartTime, ws.Spec.EndTime, ws.Spec.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: WorkSchedule %q: %w", scaling.ErrPolicyInvalid, ws.Name, err)
	}
	return w, nil
}
