package adapters

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"

	"github.com/kube-autorollout/kube-autorollout/internal/core"
	"github.com/kube-autorollout/kube-autorollout/internal/workload"
)

// WorkloadLister implements workload.Lister against a typed client-go
// clientset, listing built-in Deployment/StatefulSet/DaemonSet and Pod
// objects directly — no informer cache, since a per-tick full list is
// simpler to reason about than cache staleness for a controller that only
// runs every few tens of seconds and already tolerates a cold registry
// lookup every tick; cold listing is the same kind of cost.
type WorkloadLister struct {
	Clientset kubernetes.Interface
}

var _ workload.Lister = &WorkloadLister{}

// ListEnabledWorkloads lists every Deployment/StatefulSet/DaemonSet in
// namespace carrying the kube-autorollout/enabled=true label.
func (l *WorkloadLister) ListEnabledWorkloads(ctx context.Context, namespace string) ([]workload.RawWorkload, error) {
	listOptions := metav1.ListOptions{LabelSelector: core.EnabledLabelSelector}

	var workloads []workload.RawWorkload

	deployments, err := l.Clientset.AppsV1().Deployments(namespace).List(ctx, listOptions)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	for _, deployment := range deployments.Items {
		workloads = append(workloads, fromDeployment(deployment))
	}

	statefulSets, err := l.Clientset.AppsV1().StatefulSets(namespace).List(ctx, listOptions)
	if err != nil {
		return nil, fmt.Errorf("list statefulsets: %w", err)
	}
	for _, statefulSet := range statefulSets.Items {
		workloads = append(workloads, fromStatefulSet(statefulSet))
	}

	daemonSets, err := l.Clientset.AppsV1().DaemonSets(namespace).List(ctx, listOptions)
	if err != nil {
		return nil, fmt.Errorf("list daemonsets: %w", err)
	}
	for _, daemonSet := range daemonSets.Items {
		workloads = append(workloads, fromDaemonSet(daemonSet))
	}

	return workloads, nil
}

// ListPodsBySelector lists pods in namespace matching selector, for
// joining against a workload's running containers.
func (l *WorkloadLister) ListPodsBySelector(ctx context.Context, namespace string, selector map[string]string) ([]workload.RawPod, error) {
	pods, err := l.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.SelectorFromSet(selector).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}

	rawPods := make([]workload.RawPod, 0, len(pods.Items))
	for _, pod := range pods.Items {
		rawPods = append(rawPods, fromPod(pod))
	}
	return rawPods, nil
}

func fromDeployment(deployment appsv1.Deployment) workload.RawWorkload {
	return workload.RawWorkload{
		Kind:            core.KindDeployment,
		Namespace:       deployment.Namespace,
		Name:            deployment.Name,
		UID:             string(deployment.UID),
		Containers:      fromContainers(deployment.Spec.Template.Spec.Containers),
		PullSecretNames: fromPullSecrets(deployment.Spec.Template.Spec.ImagePullSecrets),
		Selector:        matchLabelsOf(deployment.Spec.Selector),
	}
}

func fromStatefulSet(statefulSet appsv1.StatefulSet) workload.RawWorkload {
	return workload.RawWorkload{
		Kind:            core.KindStatefulSet,
		Namespace:       statefulSet.Namespace,
		Name:            statefulSet.Name,
		UID:             string(statefulSet.UID),
		Containers:      fromContainers(statefulSet.Spec.Template.Spec.Containers),
		PullSecretNames: fromPullSecrets(statefulSet.Spec.Template.Spec.ImagePullSecrets),
		Selector:        matchLabelsOf(statefulSet.Spec.Selector),
	}
}

func fromDaemonSet(daemonSet appsv1.DaemonSet) workload.RawWorkload {
	return workload.RawWorkload{
		Kind:            core.KindDaemonSet,
		Namespace:       daemonSet.Namespace,
		Name:            daemonSet.Name,
		UID:             string(daemonSet.UID),
		Containers:      fromContainers(daemonSet.Spec.Template.Spec.Containers),
		PullSecretNames: fromPullSecrets(daemonSet.Spec.Template.Spec.ImagePullSecrets),
		Selector:        matchLabelsOf(daemonSet.Spec.Selector),
	}
}

func fromContainers(containers []corev1.Container) []workload.RawContainer {
	raw := make([]workload.RawContainer, 0, len(containers))
	for _, container := range containers {
		raw = append(raw, workload.RawContainer{
			Name:       container.Name,
			Image:      container.Image,
			PullPolicy: string(container.ImagePullPolicy),
		})
	}
	return raw
}

func fromPullSecrets(refs []corev1.LocalObjectReference) []string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return names
}

func matchLabelsOf(selector *metav1.LabelSelector) map[string]string {
	if selector == nil {
		return nil
	}
	return selector.MatchLabels
}

func fromPod(pod corev1.Pod) workload.RawPod {
	statuses := make([]workload.PodContainerStatus, 0, len(pod.Status.ContainerStatuses))
	for _, status := range pod.Status.ContainerStatuses {
		statuses = append(statuses, workload.PodContainerStatus{
			ContainerName: status.Name,
			ImageID:       status.ImageID,
			Ready:         status.Ready,
		})
	}
	return workload.RawPod{Phase: string(pod.Status.Phase), Containers: statuses}
}
