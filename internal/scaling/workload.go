package scaling

import (
	"fmt"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	wsv1 "github.com/migalsp/workschedule-operator/api/v1"
)

const (
	KindDeployment  = "Deployment"
	KindStatefulSet = "StatefulSet"
)

// Kinds returns the supported workload kinds.
func Kinds() []string {
	return []string{KindDeployment, KindStatefulSet}
}

// Workload is the snapshot of a managed workload taken at evaluation time.
type Workload struct {
	Kind      string
	Namespace string
	Name      string

	// Policy is the WorkSchedule name from the policy annotation.
	Policy string

	// Replicas is the live replica count.
	Replicas int32

	// Saved is the replica count recorded by the last sleep, nil if never recorded.
	// A stored "0" is kept as a non-nil zero.
	Saved *int32

	// SavedErr is set when the replicas annotation exists but cannot be parsed.
	SavedErr error
}

// Key identifies the workload for per-workload locking.
func (w Workload) Key() string {
	return w.Kind + "/" + w.Namespace + "/" + w.Name
}

// WorkloadFromObject builds a snapshot from a Deployment or StatefulSet.
func WorkloadFromObject(obj client.Object) (Workload, error) {
	w := Workload{
		Namespace: obj.GetNamespace(),
		Name:      obj.GetName(),
	}

	switch v := obj.(type) {
	case *appsv1.Deployment:
		w.Kind = KindDeployment
		w.Replicas = replicasOrDefault(v.Spec.Replicas)
	case *appsv1.StatefulSet:
		w.Kind = KindStatefulSet
		w.Replicas = replicasOrDefault(v.Spec.Replicas)
	default:
		return Workload{}, fmt.Errorf("unsupported workload type %T", obj)
	}

	annotations := obj.GetAnnotations()
	w.Policy = annotations[wsv1.PolicyAnnotation]
	if raw, ok := annotations[wsv1.ReplicasAnnotation]; ok {
		n, err := strconv.ParseInt(raw, 10, 32)
		switch {
		case err != nil:
			w.SavedErr = fmt.Errorf("%w: %q", ErrInvalidSavedState, raw)
		case n < 0:
			w.SavedErr = fmt.Errorf("%w: %d", ErrInvalidSavedState, n)
		default:
			saved := int32(n)
			w.Saved = &saved
		}
	}
	return w, nil
}

// replicasOrDefault mirrors the API server default of one replica.
func replicasOrDefault(r *int32) int32 {
	if r == nil {
		return 1
	}
	return *r
}
