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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	wsv1 "github.com/migalsp/workschedule-operator/api/v1"
	"github.com/migalsp/workschedule-operator/internal/mutation"
	"github.com/migalsp/workschedule-operator/internal/policy"
	"github.com/migalsp/workschedule-operator/internal/scaling"
)

var _ = Describe("Workload Controller", func() {
	const (
		namespace = "default"
		name      = "web"
	)

	var (
		ctx        context.Context
		now        time.Time
		recorder   *record.FakeRecorder
		reconciler *WorkloadReconciler
		key        = types.NamespacedName{Name: name, Namespace: namespace}
	)

	createSchedule := func(scheduleName, start, end string) {
		ws := &wsv1.WorkSchedule{
			ObjectMeta: metav1.ObjectMeta{Name: scheduleName},
			Spec:       wsv1.WorkScheduleSpec{StartTime: start, EndTime: end, TimeZone: "UTC"},
		}
		Expect(k8sClient.Create(ctx, ws)).To(Succeed())
	}

	createDeployment := func(replicas int32, annotations map[string]string) {
		d := &appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Annotations: annotations},
			Spec:       appsv1.DeploymentSpec{Replicas: ptr.To(replicas)},
		}
		Expect(k8sClient.Create(ctx, d)).To(Succeed())
	}

	fetch := func() *appsv1.Deployment {
		d := &appsv1.Deployment{}
		Expect(k8sClient.Get(ctx, key, d)).To(Succeed())
		return d
	}

	reconcileOnce := func() reconcile.Result {
		result, err := reconciler.Reconcile(ctx, reconcile.Request{NamespacedName: key})
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	BeforeEach(func() {
		ctx = context.Background()
		recorder = record.NewFakeRecorder(16)
		reconciler = &WorkloadReconciler{
			Client:   k8sClient,
			Scheme:   k8sClient.Scheme(),
			Recorder: recorder,
			Kind:     scaling.KindDeployment,
			Engine: &scaling.Engine{
				Resolver: &policy.ClientResolver{Client: k8sClient},
				Executor: &mutation.PatchExecutor{Client: k8sClient},
				Now:      func() time.Time { return now },
			},
		}
		createSchedule("office-hours", "09:00", "17:00")
	})

	Context("outside working hours", func() {
		BeforeEach(func() {
			now = time.Date(2026, 3, 2, 8, 59, 0, 0, time.UTC)
		})

		It("saves the replica count and scales to zero", func() {
			createDeployment(3, map[string]string{wsv1.PolicyAnnotation: "office-hours"})

			result := reconcileOnce()
			Expect(result.RequeueAfter).To(Equal(DefaultInterval))

			d := fetch()
			Expect(*d.Spec.Replicas).To(BeEquivalentTo(0))
			Expect(d.Annotations).To(HaveKeyWithValue(wsv1.ReplicasAnnotation, "3"))
			Expect(recorder.Events).To(Receive(ContainSubstring(EventScaledDown)))
		})

		It("leaves an already sleeping workload untouched", func() {
			createDeployment(0, map[string]string{
				wsv1.PolicyAnnotation:   "office-hours",
				wsv1.ReplicasAnnotation: "5",
			})

			reconcileOnce()

			d := fetch()
			Expect(*d.Spec.Replicas).To(BeEquivalentTo(0))
			Expect(d.Annotations).To(HaveKeyWithValue(wsv1.ReplicasAnnotation, "5"))
			Expect(recorder.Events).NotTo(Receive())
		})

		It("is idempotent across ticks", func() {
			createDeployment(2, map[string]string{wsv1.PolicyAnnotation: "office-hours"})

			reconcileOnce()
			Expect(recorder.Events).To(Receive(ContainSubstring(EventScaledDown)))
			reconcileOnce()
			reconcileOnce()

			d := fetch()
			Expect(*d.Spec.Replicas).To(BeEquivalentTo(0))
			Expect(d.Annotations).To(HaveKeyWithValue(wsv1.ReplicasAnnotation, "2"))
			Expect(recorder.Events).NotTo(Receive())
		})
	})

	Context("within working hours", func() {
		BeforeEach(func() {
			now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		})

		It("restores the saved replica count and keeps the annotation", func() {
			createDeployment(0, map[string]string{
				wsv1.PolicyAnnotation:   "office-hours",
				wsv1.ReplicasAnnotation: "3",
			})

			reconcileOnce()

			d := fetch()
			Expect(*d.Spec.Replicas).To(BeEquivalentTo(3))
			Expect(d.Annotations).To(HaveKeyWithValue(wsv1.ReplicasAnnotation, "3"))
			Expect(recorder.Events).To(Receive(ContainSubstring(EventScaledUp)))
		})

		It("refuses to guess when no count was saved", func() {
			createDeployment(0, map[string]string{wsv1.PolicyAnnotation: "office-hours"})

			result := reconcileOnce()
			Expect(result.RequeueAfter).To(Equal(DefaultInterval))

			Expect(*fetch().Spec.Replicas).To(BeEquivalentTo(0))
			Expect(recorder.Events).To(Receive(ContainSubstring("MissingSavedState")))
		})
	})

	Context("with a broken policy reference", func() {
		BeforeEach(func() {
			now = time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
		})

		It("does nothing when the WorkSchedule does not exist", func() {
			createDeployment(4, map[string]string{wsv1.PolicyAnnotation: "nope"})

			reconcileOnce()

			Expect(*fetch().Spec.Replicas).To(BeEquivalentTo(4))
			Expect(recorder.Events).To(Receive(ContainSubstring("PolicyNotFound")))
		})

		It("does nothing when the window is inverted", func() {
			createSchedule("night-shift", "17:00", "09:00")
			createDeployment(4, map[string]string{wsv1.PolicyAnnotation: "night-shift"})

			reconcileOnce()

			d := fetch()
			Expect(*d.Spec.Replicas).To(BeEquivalentTo(4))
			Expect(d.Annotations).NotTo(HaveKey(wsv1.ReplicasAnnotation))
			Expect(recorder.Events).To(Receive(ContainSubstring("PolicyInvalid")))
		})
	})

	It("ignores workloads without the policy annotation", func() {
		now = time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
		createDeployment(2, nil)

		result := reconcileOnce()
		Expect(result.RequeueAfter).To(BeZero())
		Expect(*fetch().Spec.Replicas).To(BeEquivalentTo(2))
	})

	It("returns cleanly for deleted workloads", func() {
		result := reconcileOnce()
		Expect(result).To(Equal(reconcile.Result{}))
	})

	It("scales StatefulSets as well", func() {
		now = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
		reconciler.Kind = scaling.KindStatefulSet
		s := &appsv1.StatefulSet{
			ObjectMeta: metav1.ObjectMeta{
				Name:        name,
				Namespace:   namespace,
				Annotations: map[string]string{wsv1.PolicyAnnotation: "office-hours"},
			},
			Spec: appsv1.StatefulSetSpec{Replicas: ptr.To[int32](2)},
		}
		Expect(k8sClient.Create(ctx, s)).To(Succeed())

		reconcileOnce()

		got := &appsv1.StatefulSet{}
		Expect(k8sClient.Get(ctx, key, got)).To(Succeed())
		Expect(*got.Spec.Replicas).To(BeEquivalentTo(0))
		Expect(got.Annotations).To(HaveKeyWithValue(wsv1.ReplicasAnnotation, "2"))
	})
})
