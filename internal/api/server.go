package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	wsv1 "github.com/migalsp/workschedule-operator/api/v1"
	"github.com/migalsp/workschedule-operator/internal/scaling"
)

// Version is set at build time via ldflags
var Version = "dev"

const defaultPort = "8082"

// Server exposes a read-only view of WorkSchedules and the workloads that
// reference them. It never scales anything.
type Server struct {
	Client        client.Client
	K8sClient     kubernetes.Interface
	MetricsClient metricsv.Interface
	// Engine is used in plan-only mode to report what the next tick would do.
	Engine *scaling.Engine
	// Auth is nil when the API is served without authentication.
	Auth *Auth
	Port string

	mu      sync.Mutex
	history []map[string]interface{}
}

//go:embed openapi.yaml
var openapiSpec []byte

// Handler returns the API routes wrapped with the auth middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/workschedules", s.handleWorkSchedules)
	mux.HandleFunc("/api/workschedules/", s.handleWorkSchedule)
	mux.HandleFunc("/api/workloads", s.handleWorkloads)
	mux.HandleFunc("/api/cluster-info", s.handleClusterInfo)
	mux.HandleFunc("/api/operator/health", s.handleOperatorHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/login", s.Auth.HandleLogin)
	mux.HandleFunc("/api/logout", s.Auth.HandleLogout)
	mux.HandleFunc("/api/openapi.yaml", handleOpenAPISpec)

	return s.Auth.Middleware(mux)
}

// Start implements manager.Runnable.
func (s *Server) Start(ctx context.Context) error {
	log := logf.FromContext(ctx).WithName("api-server")

	port := s.Port
	if port == "" {
		port = defaultPort
	}
	addr := ":" + port

	server := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	log.Info("Starting API server", "addr", addr, "auth", s.Auth.Enabled())

	go func() {
		<-ctx.Done()
		log.Info("Shutting down API server")
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error(err, "API server shutdown failed")
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// NeedLeaderElection lets every replica serve the read-only API.
func (s *Server) NeedLeaderElection() bool {
	return false
}

func (s *Server) handleClusterInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.K8sClient == nil {
		http.Error(w, "cluster client not configured", http.StatusServiceUnavailable)
		return
	}

	version, err := s.K8sClient.Discovery().ServerVersion()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{
		"version":  version.GitVersion,
		"platform": version.Platform,
	})
}

func (s *Server) handleOperatorHealth(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	podName := os.Getenv("HOSTNAME")
	podNs := os.Getenv("POD_NAMESPACE")

	usageCPU := float64(0)
	usageMem := float64(m.Alloc / 1024 / 1024)
	reqCPU := float64(0)
	reqMem := float64(0)

	if podName != "" && podNs != "" && s.K8sClient != nil {
		if pod, err := s.K8sClient.CoreV1().Pods(podNs).Get(r.Context(), podName, metav1.GetOptions{}); err == nil {
			for _, container := range pod.Spec.Containers {
				reqCPU += float64(container.Resources.Requests.Cpu().MilliValue()) / 1000.0
				reqMem += float64(container.Resources.Requests.Memory().Value()) / 1024 / 1024
			}
		}

		if s.MetricsClient != nil {
			if podMetrics, err := s.MetricsClient.MetricsV1beta1().PodMetricses(podNs).Get(r.Context(), podName, metav1.GetOptions{}); err == nil {
				totalCPU := int64(0)
				totalMem := int64(0)
				for _, container := range podMetrics.Containers {
					totalCPU += container.Usage.Cpu().MilliValue()
					totalMem += container.Usage.Memory().Value()
				}
				usageCPU = float64(totalCPU) / 1000.0
				usageMem = float64(totalMem) / 1024 / 1024
			}
		}
	}

	schedules := 0
	var list wsv1.WorkScheduleList
	if err := s.Client.List(r.Context(), &list); err == nil {
		schedules = len(list.Items)
	}

	lockedWorkloads := 0
	if s.Engine != nil && s.Engine.Locks != nil {
		lockedWorkloads = s.Engine.Locks.Len()
	}

	health := map[string]interface{}{
		"status":           "healthy",
		"workSchedules":    schedules,
		"trackedWorkloads": lockedWorkloads,
		"memoryUsage":      usageMem,
		"cpuUsage":         usageCPU,
		"memoryRequests":   reqMem,
		"cpuRequests":      reqCPU,
		"goroutines":       runtime.NumGoroutine(),
		"heapAllocMiB":     float64(m.HeapAlloc) / 1024 / 1024,
		"gcCycles":         m.NumGC,
		"timestamp":        metav1.Now(),
	}

	s.mu.Lock()
	s.history = append(s.history, health)
	if len(s.history) > 60 {
		s.history = s.history[1:]
	}
	history := append([]map[string]interface{}(nil), s.history...)
	s.mu.Unlock()

	writeJSON(w, map[string]interface{}{
		"current": health,
		"history": history,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"version": Version,
	})
}

func handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(openapiSpec)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logf.Log.Error(err, "Failed to encode response")
	}
}
