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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	wsv1 "github.com/migalsp/workschedule-operator/api/v1"
)

var _ = Describe("WorkSchedule Controller", func() {
	const resourceName = "office-hours"

	var (
		ctx        context.Context
		recorder   *record.FakeRecorder
		reconciler *WorkScheduleReconciler
		key        = types.NamespacedName{Name: resourceName}
	)

	create := func(spec wsv1.WorkScheduleSpec) {
		By("creating the custom resource for the Kind WorkSchedule")
		ws := &wsv1.WorkSchedule{ObjectMeta: metav1.ObjectMeta{Name: resourceName}, Spec: spec}
		Expect(k8sClient.Create(ctx, ws)).To(Succeed())
	}

	validCondition := func() *metav1.Condition {
		ws := &wsv1.WorkSchedule{}
		Expect(k8sClient.Get(ctx, key, ws)).To(Succeed())
		return meta.FindStatusCondition(ws.Status.Conditions, wsv1.ConditionValid)
	}

	reconcileOnce := func() {
		_, err := reconciler.Reconcile(ctx, reconcile.Request{NamespacedName: key})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		recorder = record.NewFakeRecorder(8)
		reconciler = &WorkScheduleReconciler{
			Client:   k8sClient,
			Scheme:   k8sClient.Scheme(),
			Recorder: recorder,
		}
	})

	It("marks a regular window as valid", func() {
		create(wsv1.WorkScheduleSpec{StartTime: "08:30", EndTime: "18:00", TimeZone: "Europe/Berlin"})

		reconcileOnce()

		cond := validCondition()
		Expect(cond).NotTo(BeNil())
		Expect(cond.Status).To(Equal(metav1.ConditionTrue))
		Expect(cond.Message).To(ContainSubstring("08:30-18:00 Europe/Berlin"))
		Expect(recorder.Events).NotTo(Receive())
	})

	DescribeTable("rejects unusable windows",
		func(spec wsv1.WorkScheduleSpec, reason string) {
			create(spec)

			reconcileOnce()

			cond := validCondition()
			Expect(cond).NotTo(BeNil())
			Expect(cond.Status).To(Equal(metav1.ConditionFalse))
			Expect(cond.Reason).To(Equal(reason))
			Expect(recorder.Events).To(Receive(ContainSubstring(reason)))

			By("not repeating the warning on the next reconcile")
			reconcileOnce()
			Expect(recorder.Events).NotTo(Receive())
		},
		Entry("inverted", wsv1.WorkScheduleSpec{StartTime: "17:00", EndTime: "09:00"}, wsv1.ReasonInvalidWindow),
		Entry("equal bounds", wsv1.WorkScheduleSpec{StartTime: "09:00", EndTime: "09:00"}, wsv1.ReasonInvalidWindow),
		Entry("unknown zone", wsv1.WorkScheduleSpec{StartTime: "09:00", EndTime: "17:00", TimeZone: "Atlantis/Capital"}, wsv1.ReasonInvalidTimeZone),
		Entry("bad time", wsv1.WorkScheduleSpec{StartTime: "nine", EndTime: "17:00"}, wsv1.ReasonInvalidTime),
	)

	It("ignores schedules that no longer exist", func() {
		reconcileOnce()
	})
})
