package adapters

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/tools/record"

	"github.com/kube-autorollout/kube-autorollout/internal/core"
)

// EventRecorder wraps a client-go EventRecorder with helpers specific to
// kube-autorollout's own decisions, so the reconciler (C6) does not need to
// import client-go's event machinery itself.
type EventRecorder struct {
	recorder record.EventRecorder
}

// NewEventRecorder builds a broadcaster that sinks events to the API server
// through clientset and returns an EventRecorder wired to it.
func NewEventRecorder(clientset kubernetes.Interface) *EventRecorder {
	broadcaster := record.NewBroadcaster()
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: clientset.CoreV1().Events("")})
	recorder := broadcaster.NewRecorder(nil, corev1.EventSource{Component: "kube-autorollout"})
	return &EventRecorder{recorder: recorder}
}

// RolloutTriggered records a Normal event on the workload that was just
// patched with the restart annotation.
func (e *EventRecorder) RolloutTriggered(target core.Workload, reason string) {
	if e == nil || e.recorder == nil {
		return
	}
	e.recorder.Eventf(objectReferenceFor(target), corev1.EventTypeNormal, "RolloutTriggered", reason)
}

// LookupFailed records a Warning event on a workload whose tick produced a
// SkipWarning decision, so kubectl describe/get events surfaces the failure
// next to the workload it concerns without requiring log access.
func (e *EventRecorder) LookupFailed(target core.Workload, reason string) {
	if e == nil || e.recorder == nil {
		return
	}
	e.recorder.Eventf(objectReferenceFor(target), corev1.EventTypeWarning, "DigestLookupFailed", reason)
}

func objectReferenceFor(target core.Workload) *corev1.ObjectReference {
	return &corev1.ObjectReference{
		APIVersion: "apps/v1",
		Kind:       string(target.Kind),
		Namespace:  target.Namespace,
		Name:       target.Name,
		UID:        types.UID(target.UID),
	}
}
