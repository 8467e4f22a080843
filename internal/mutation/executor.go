package mutation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	wsv1 "github.com/migalsp/workschedule-operator/api/v1"
	"github.com/migalsp/workschedule-operator/internal/scaling"
)

// PatchExecutor applies workload mutations as JSON merge patches, so only the
// touched fields are sent and concurrent edits to other fields are preserved.
type PatchExecutor struct {
	Client client.Client
}

var _ scaling.MutationExecutor = (*PatchExecutor)(nil)

// +kubebuilder:rbac:groups=apps,resources=deployments;statefulsets,verbs=get;list;watch;patch

func (p *PatchExecutor) SaveReplicas(ctx context.Context, w scaling.Workload, n int32) error {
	body := map[string]any{
		"metadata": map[string]any{
			"annotations": map[string]string{
				wsv1.ReplicasAnnotation: strconv.FormatInt(int64(n), 10),
			},
		},
	}
	return p.patch(ctx, w, body)
}

func (p *PatchExecutor) SetReplicas(ctx context.Context, w scaling.Workload, n int32) error {
	body := map[string]any{
		"spec": map[string]any{
			"replicas": n,
		},
	}
	return p.patch(ctx, w, body)
}

func (p *PatchExecutor) patch(ctx context.Context, w scaling.Workload, body map[string]any) error {
	obj, err := objectFor(w)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return p.Client.Patch(ctx, obj, client.RawPatch(types.MergePatchType, raw))
}

func objectFor(w scaling.Workload) (client.Object, error) {
	meta := metav1.ObjectMeta{Name: w.Name, Namespace: w.Namespace}
	switch w.Kind {
	case scaling.KindDeployment:
		return &appsv1.Deployment{ObjectMeta: meta}, nil
	case scaling.KindStatefulSet:
		return &appsv1.StatefulSet{ObjectMeta: meta}, nil
	}
	return nil, fmt.Errorf("unsupported workload kind %q", w.Kind)
}
