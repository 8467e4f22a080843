package api

import (
	"net/http"
	"sort"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	wsv1 "github.com/migalsp/workschedule-operator/api/v1"
	"github.com/migalsp/workschedule-operator/internal/policy"
	"github.com/migalsp/workschedule-operator/internal/scaling"
)

// WorkScheduleView is a WorkSchedule together with its freshly computed validity.
type WorkScheduleView struct {
	Name      string `json:"name"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	TimeZone  string `json:"timeZone"`
	Valid     bool   `json:"valid"`
	Message   string `json:"message,omitempty"`
}

// WorkloadView is an opted-in workload and the decision the next tick would take.
type WorkloadView struct {
	Kind          string `json:"kind"`
	Namespace     string `json:"namespace"`
	Name          string `json:"name"`
	Policy        string `json:"policy"`
	Replicas      int32  `json:"replicas"`
	SavedReplicas *int32 `json:"savedReplicas,omitempty"`
	Action        string `json:"action,omitempty"`
	Decision      string `json:"decision,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func viewOf(ws *wsv1.WorkSchedule) WorkScheduleView {
	v := WorkScheduleView{
		Name:      ws.Name,
		StartTime: ws.Spec.StartTime,
		EndTime:   ws.Spec.EndTime,
		TimeZone:  ws.Spec.TimeZone,
	}
	w, err := policy.WindowOf(ws)
	if err == nil {
		err = w.Validate()
	}
	if err != nil {
		v.Message = err.Error()
		return v
	}
	v.Valid = true
	v.Message = "Active " + w.String()
	return v
}

func (s *Server) handleWorkSchedules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var list wsv1.WorkScheduleList
	if err := s.Client.List(r.Context(), &list); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]WorkScheduleView, 0, len(list.Items))
	for i := range list.Items {
		views = append(views, viewOf(&list.Items[i]))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })

	writeJSON(w, views)
}

func (s *Server) handleWorkSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/workschedules/"), "/")
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	ws := &wsv1.WorkSchedule{}
	if err := s.Client.Get(r.Context(), client.ObjectKey{Name: name}, ws); err != nil {
		if errors.IsNotFound(err) {
			http.Error(w, "WorkSchedule not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, viewOf(ws))
}

// handleWorkloads lists opted-in Deployments and StatefulSets, optionally
// filtered by ?namespace= and ?policy=.
func (s *Server) handleWorkloads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	var opts []client.ListOption
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		opts = append(opts, client.InNamespace(ns))
	}
	wantPolicy := r.URL.Query().Get("policy")

	var objects []client.Object

	var deployments appsv1.DeploymentList
	if err := s.Client.List(ctx, &deployments, opts...); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for i := range deployments.Items {
		objects = append(objects, &deployments.Items[i])
	}

	var statefulSets appsv1.StatefulSetList
	if err := s.Client.List(ctx, &statefulSets, opts...); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for i := range statefulSets.Items {
		objects = append(objects, &statefulSets.Items[i])
	}

	views := make([]WorkloadView, 0)
	for _, obj := range objects {
		name, ok := obj.GetAnnotations()[wsv1.PolicyAnnotation]
		if !ok || (wantPolicy != "" && name != wantPolicy) {
			continue
		}
		wl, err := scaling.WorkloadFromObject(obj)
		if err != nil {
			continue
		}

		v := WorkloadView{
			Kind:          wl.Kind,
			Namespace:     wl.Namespace,
			Name:          wl.Name,
			Policy:        wl.Policy,
			Replicas:      wl.Replicas,
			SavedReplicas: wl.Saved,
		}
		if s.Engine != nil {
			d := s.Engine.Plan(ctx, wl)
			v.Action = string(d.Action)
			v.Decision = d.String()
			v.Reason = scaling.ReasonOf(d.Reason)
		}
		views = append(views, v)
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].Namespace != views[j].Namespace {
			return views[i].Namespace < views[j].Namespace
		}
		if views[i].Name != views[j].Name {
			return views[i].Name < views[j].Name
		}
		return views[i].Kind < views[j].Kind
	})

	writeJSON(w, views)
}
