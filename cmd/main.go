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

package main

import (
	"flag"
	"os"
	"time"

	// Embedded IANA database so WorkSchedule time zones resolve in distroless images.
	_ "time/tzdata"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	wsv1 "github.com/migalsp/workschedule-operator/api/v1"
	"github.com/migalsp/workschedule-operator/internal/api"
	"github.com/migalsp/workschedule-operator/internal/controller"
	"github.com/migalsp/workschedule-operator/internal/metrics"
	"github.com/migalsp/workschedule-operator/internal/mutation"
	"github.com/migalsp/workschedule-operator/internal/policy"
	"github.com/migalsp/workschedule-operator/internal/scaling"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	utilruntime.Must(wsv1.AddToScheme(scheme))
	// +kubebuilder:scaffold:scheme
}

func main() {
	var metricsAddr string
	var probeAddr string
	var enableLeaderElection bool
	var interval time.Duration
	var apiPort string
	var enableAPI bool
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metrics endpoint binds to. "+
		"Use 0 to disable the metrics service.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. "+
			"Enabling this will ensure there is only one active controller manager.")
	flag.DurationVar(&interval, "interval", controller.DefaultInterval,
		"How often every opted-in workload is re-evaluated against its WorkSchedule.")
	flag.StringVar(&apiPort, "api-port", "8082", "The port the read-only API server listens on.")
	flag.BoolVar(&enableAPI, "enable-api", true, "Serve the read-only WorkSchedule API.")
	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if interval <= 0 {
		setupLog.Error(nil, "interval must be positive", "interval", interval)
		os.Exit(1)
	}

	cfg := ctrl.GetConfigOrDie()
	mgr, err := ctrl.NewManager(cfg, ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: metricsAddr},
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "workschedule.kubex.io",
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	recorder := metrics.NewPrometheus(nil)
	recorder.Initialize(scaling.Actions(), scaling.RejectionReasons(), scaling.Kinds())

	// One engine for both workload kinds so the metrics and lock table are shared.
	engine := &scaling.Engine{
		Resolver: &policy.ClientResolver{Client: mgr.GetClient()},
		Executor: &mutation.PatchExecutor{Client: mgr.GetClient()},
		Locks:    scaling.NewKeyedMutex(),
		Metrics:  recorder,
	}

	for _, kind := range []string{scaling.KindDeployment, scaling.KindStatefulSet} {
		if err = (&controller.WorkloadReconciler{
			Client:   mgr.GetClient(),
			Scheme:   mgr.GetScheme(),
			Engine:   engine,
			Kind:     kind,
			Interval: interval,
		}).SetupWithManager(mgr); err != nil {
			setupLog.Error(err, "unable to create controller", "controller", kind)
			os.Exit(1)
		}
	}
	if err = (&controller.WorkScheduleReconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "WorkSchedule")
		os.Exit(1)
	}
	// +kubebuilder:scaffold:builder

	if enableAPI {
		k8sClient, err := kubernetes.NewForConfig(cfg)
		if err != nil {
			setupLog.Error(err, "unable to create kubernetes clientset")
			os.Exit(1)
		}
		// metrics-server is optional; the health endpoint falls back to runtime stats.
		metricsClient, err := metricsv.NewForConfig(cfg)
		if err != nil {
			setupLog.Error(err, "unable to create metrics clientset, pod usage will not be reported")
		}
		server := &api.Server{
			Client:    mgr.GetClient(),
			K8sClient: k8sClient,
			Engine:    engine,
			Auth:      api.AuthFromEnv(),
			Port:      apiPort,
		}
		if metricsClient != nil {
			server.MetricsClient = metricsClient
		}
		if err := mgr.Add(server); err != nil {
			setupLog.Error(err, "unable to add API server")
			os.Exit(1)
		}
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager", "interval", interval.String())
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}
