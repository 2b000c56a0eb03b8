package core

// EnabledLabel opts a workload into kube-autorollout's reconciliation.
const EnabledLabel = "kube-autorollout/enabled"

// EnabledLabelSelector is the label selector used to list opted-in workloads.
const EnabledLabelSelector = EnabledLabel + "=true"

// FieldManager identifies kube-autorollout's patches to the Kubernetes API server.
const FieldManager = "kube-autorollout"

// RestartedAtAnnotation is the default annotation key the patch engine sets.
const RestartedAtAnnotation = "kube-autorollout/restartedAt"

// KubectlRestartedAtAnnotation is used instead of RestartedAtAnnotation when
// FeatureFlags.EnableKubectlAnnotation is set, so `kubectl rollout status`
// and friends recognize the restart the same way `kubectl rollout restart` does.
const KubectlRestartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// WorkloadKind enumerates the workload kinds the enumerator watches.
type WorkloadKind string

const (
	KindDeployment  WorkloadKind = "Deployment"
	KindStatefulSet WorkloadKind = "StatefulSet"
	KindDaemonSet   WorkloadKind = "DaemonSet"
)
