package core

import "github.com/kube-autorollout/kube-autorollout/internal/imageref"

// NamespacedName identifies a namespaced Kubernetes object.
type NamespacedName struct {
	Namespace string
	Name      string
}

func (n NamespacedName) String() string {
	return n.Namespace + "/" + n.Name
}

// PullPolicy mirrors corev1.PullPolicy without importing the full corev1
// package into packages that only need to compare against "Always".
type PullPolicy string

const (
	PullAlways       PullPolicy = "Always"
	PullIfNotPresent PullPolicy = "IfNotPresent"
	PullNever        PullPolicy = "Never"
)

// ContainerSpec is one container entry from a workload's pod template.
type ContainerSpec struct {
	Name       string
	Image      imageref.Reference
	PullPolicy PullPolicy
}

// Workload is a joined view of a Deployment/StatefulSet/DaemonSet's pod
// template, independent of which concrete Kubernetes type it came from.
type Workload struct {
	Kind             WorkloadKind
	Namespace        string
	Name             string
	UID              string
	Containers       []ContainerSpec
	PullSecretNames  []string
	Selector         map[string]string
}

// NamespacedName returns the workload's identity.
func (w Workload) NamespacedName() NamespacedName {
	return NamespacedName{Namespace: w.Namespace, Name: w.Name}
}

// RunningDigest is the digest a container is currently running, as reported
// by a pod's containerStatuses[].imageID, or Unknown when no ready running
// pod reports a status for that container.
type RunningDigest struct {
	Digest string
	Known  bool
}

// Unknown is the zero-value RunningDigest meaning "nothing running to
// compare against".
var Unknown = RunningDigest{}

// KnownDigest wraps a digest string into a known RunningDigest.
func KnownDigest(digest string) RunningDigest { return RunningDigest{Digest: digest, Known: true} }

// ContainerObservation is the per-container tuple the enumerator (C5) emits:
// a container's declared image reference joined with what a running pod
// currently reports for that container.
type ContainerObservation struct {
	ContainerName string
	Image         imageref.Reference
	PullPolicy    PullPolicy
	Running       RunningDigest
}

// WorkloadObservation joins a Workload with its per-container observations
// for a single tick.
type WorkloadObservation struct {
	Workload   Workload
	Containers []ContainerObservation
}

// Triplet is the (host, repository, tag) key the DigestCache dedupes
// registry fetches on — one entry per distinct triplet per tick, regardless
// of how many workloads or containers reference it.
type Triplet struct {
	Host       string
	Repository string
	Tag        string
}

// String renders the triplet as host/repository:tag, for logging.
func (t Triplet) String() string {
	return t.Host + "/" + t.Repository + ":" + t.Tag
}

// DecisionKind enumerates the outcomes of RolloutDecision.
type DecisionKind int

const (
	SkipNoChange DecisionKind = iota
	SkipWarning
	Patch
)

// RolloutDecision is the per-workload outcome of one reconciliation tick.
type RolloutDecision struct {
	Kind   DecisionKind
	Reason string
}
