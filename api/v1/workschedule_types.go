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

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// PolicyAnnotation names the WorkSchedule a workload follows.
	// Set by whoever enables scheduling on the workload.
	PolicyAnnotation = "workschedule.kubex.io/policy"

	// ReplicasAnnotation holds the replica count recorded when the workload
	// was last put to sleep, as a decimal string.
	ReplicasAnnotation = "workschedule.kubex.io/replicas"

	// Finalizer is reserved for cleanup of WorkSchedule objects.
	// The operator does not currently add it to any object.
	Finalizer = "workschedule.kubex.io/workschedule-cleanup"
)

// Condition types and reasons reported on WorkSchedule status
const (
	ConditionValid = "Valid"

	ReasonValidWindow     = "ValidWindow"
	ReasonInvalidWindow   = "InvalidWindow"
	ReasonInvalidTime     = "InvalidTime"
	ReasonInvalidTimeZone = "InvalidTimeZone"
)

// WorkScheduleSpec defines the daily active hours of the workloads referencing it
type WorkScheduleSpec struct {
	// StartTime in HH:MM format, 24-hour clock
	// +kubebuilder:validation:Pattern=`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`
	StartTime string `json:"startTime"`

	// EndTime in HH:MM format, 24-hour clock. Must be later than StartTime;
	// windows crossing midnight are not supported.
	// +kubebuilder:validation:Pattern=`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`
	EndTime string `json:"endTime"`

	// TimeZone is the IANA timezone both bounds are interpreted in (e.g. "Europe/Berlin").
	// If empty, UTC is used.
	// +optional
	TimeZone string `json:"timeZone,omitempty"`
}

// WorkScheduleStatus defines the observed state of WorkSchedule.
type WorkScheduleStatus struct {
	// ObservedGeneration is the generation last validated by the operator
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Conditions represent the current state of the WorkSchedule resource.
	// +listType=map
	// +listMapKey=type
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Cluster,shortName=ws
// +kubebuilder:printcolumn:name="Start",type=string,JSONPath=`.spec.startTime`
// +kubebuilder:printcolumn:name="End",type=string,JSONPath=`.spec.endTime`
// +kubebuilder:printcolumn:name="TimeZone",type=string,JSONPath=`.spec.timeZone`
// +kubebuilder:printcolumn:name="Valid",type=string,JSONPath=`.status.conditions[?(@.type=="Valid")].status`

// WorkSchedule is the Schema for the workschedules API
type WorkSchedule struct {
	metav1.TypeMeta `json:",inline"`

	// metadata is a standard object metadata
	// +optional
	metav1.ObjectMeta `json:"metadata,omitzero"`

	// spec defines the active hours
	// +required
	Spec WorkScheduleSpec `json:"spec"`

	// status defines the observed state of WorkSchedule
	// +optional
	Status WorkScheduleStatus `json:"status,omitzero"`
}

// +kubebuilder:object:root=true

// WorkScheduleList contains a list of WorkSchedule
type WorkScheduleList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitzero"`
	Items           []WorkSchedule `json:"items"`
}

func init() {
	SchemeBuilder.Register(&WorkSchedule{}, &WorkScheduleList{})
}
