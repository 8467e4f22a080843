package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Recorder receives evaluation outcomes.
type Recorder interface {
	RecordDecision(action string)
	RecordRejection(reason string)
	RecordMutationFailure(kind string)
	ObserveEvaluation(seconds float64)
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordDecision(string)        {}
func (Nop) RecordRejection(string)       {}
func (Nop) RecordMutationFailure(string) {}
func (Nop) ObserveEvaluation(float64)    {}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	decisions        *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	mutationFailures *prometheus.CounterVec
	evaluation       prometheus.Histogram
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates a Recorder and registers its collectors on reg.
// A nil reg uses the controller-runtime registry served by the manager's metrics endpoint.
// It panics if the collectors are already registered on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = ctrlmetrics.Registry
	}
	p := &Prometheus{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workschedule",
			Name:      "decisions_total",
			Help:      "Evaluations by resulting action (NoOp, Sleep, Wake, Reject).",
		}, []string{"action"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workschedule",
			Name:      "rejections_total",
			Help:      "Rejected evaluations by reason.",
		}, []string{"reason"}),
		mutationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workschedule",
			Name:      "mutation_failures_total",
			Help:      "Patches rejected by the API server, by workload kind.",
		}, []string{"kind"}),
		evaluation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "workschedule",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating one workload, including policy lookup and patches.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms .. ~2.5s
		}),
	}
	reg.MustRegister(p.decisions, p.rejections, p.mutationFailures, p.evaluation)
	return p
}

// Initialize pre-creates zero-valued series for the given label values.
func (p *Prometheus) Initialize(actions, reasons, kinds []string) {
	for _, a := range actions {
		p.decisions.WithLabelValues(a)
	}
	for _, r := range reasons {
		p.rejections.WithLabelValues(r)
	}
	for _, k := range kinds {
		p.mutationFailures.WithLabelValues(k)
	}
}

func (p *Prometheus) RecordDecision(action string) {
	p.decisions.WithLabelValues(action).Inc()
}

func (p *Prometheus) RecordRejection(reason string) {
	p.rejections.WithLabelValues(reason).Inc()
}

func (p *Prometheus) RecordMutationFailure(kind string) {
	p.mutationFailures.WithLabelValues(kind).Inc()
}

func (p *Prometheus) ObserveEvaluation(seconds float64) {
	p.evaluation.Observe(seconds)
}
