// Package workload implements the workload enumerator (C5): it lists
// labeled Deployment/StatefulSet/DaemonSet objects and joins them with the
// containerStatuses of their currently running pods.
package workload

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/kube-autorollout/kube-autorollout/internal/core"
	"github.com/kube-autorollout/kube-autorollout/internal/imageref"
)

// RawContainer is one pod-template container entry as read from the API,
// before image-string parsing.
type RawContainer struct {
	Name       string
	Image      string
	PullPolicy string
}

// RawWorkload is the API-shaped view of a Deployment/StatefulSet/DaemonSet
// the Lister returns, before being joined with pod statuses.
type RawWorkload struct {
	Kind            core.WorkloadKind
	Namespace       string
	Name            string
	UID             string
	Containers      []RawContainer
	PullSecretNames []string
	Selector        map[string]string
}

// PodContainerStatus is a single container's status as read from a pod,
// scoped to one pod the caller already matched to a workload.
type PodContainerStatus struct {
	ContainerName string
	ImageID       string
	Ready         bool
}

// RawPod is the subset of a pod's status the enumerator needs.
type RawPod struct {
	Phase      string
	Containers []PodContainerStatus
}

// Lister abstracts the Kubernetes reads the enumerator needs.
type Lister interface {
	// ListEnabledWorkloads returns every Deployment/StatefulSet/DaemonSet in
	// namespace carrying the kube-autorollout/enabled=true label.
	ListEnabledWorkloads(ctx context.Context, namespace string) ([]RawWorkload, error)
	// ListPodsBySelector returns pods in namespace matching selector.
	ListPodsBySelector(ctx context.Context, namespace string, selector map[string]string) ([]RawPod, error)
}

// Enumerator implements C5.
type Enumerator struct {
	Lister    Lister
	Namespace string
	Logger    logr.Logger
}

// New constructs an Enumerator.
func New(lister Lister, namespace string, logger logr.Logger) *Enumerator {
	return &Enumerator{Lister: lister, Namespace: namespace, Logger: logger}
}

// Enumerate lists labeled workloads, joins them with their pods' running
// digests, and emits one ContainerObservation per (workload, container).
// A failure to list the labeled workloads themselves is returned as a
// KubeApiError. A workload whose pods cannot be listed is skipped for this
// tick rather than aborting the enumeration of the rest.
func (e *Enumerator) Enumerate(ctx context.Context) ([]core.WorkloadObservation, error) {
	rawWorkloads, err := e.Lister.ListEnabledWorkloads(ctx, e.Namespace)
	if err != nil {
		return nil, core.Categorize(fmt.Errorf("workload: list workloads: %w", err), core.CategoryKubeAPIError)
	}

	observations := make([]core.WorkloadObservation, 0, len(rawWorkloads))
	for _, raw := range rawWorkloads {
		observation, err := e.observe(ctx, raw)
		if err != nil {
			e.Logger.Error(err, "skipping workload this tick", "workload", raw.Namespace+"/"+raw.Name)
			continue
		}
		observations = append(observations, observation)
	}
	return observations, nil
}

func (e *Enumerator) observe(ctx context.Context, raw RawWorkload) (core.WorkloadObservation, error) {
	containers := make([]core.ContainerSpec, 0, len(raw.Containers))

	for _, container := range raw.Containers {
		ref, err := imageref.Parse(container.Image)
		if err != nil {
			e.Logger.Error(err, "invalid image reference, skipping container",
				"workload", raw.Namespace+"/"+raw.Name, "container", container.Name, "image", container.Image)
			continue
		}
		policy := core.PullPolicy(container.PullPolicy)
		if policy == "" {
			policy = core.PullAlways
		}
		if policy != core.PullAlways {
			e.Logger.Info("container does not use imagePullPolicy: Always; a restart is not guaranteed to pull the new digest",
				"workload", raw.Namespace+"/"+raw.Name, "container", container.Name, "pullPolicy", policy)
		}
		containers = append(containers, core.ContainerSpec{Name: container.Name, Image: ref, PullPolicy: policy})
	}

	workloadModel := core.Workload{
		Kind:            raw.Kind,
		Namespace:       raw.Namespace,
		Name:            raw.Name,
		UID:             raw.UID,
		Containers:      containers,
		PullSecretNames: raw.PullSecretNames,
		Selector:        raw.Selector,
	}

	running, err := e.runningDigests(ctx, raw)
	if err != nil {
		return core.WorkloadObservation{}, err
	}

	containerObservations := make([]core.ContainerObservation, 0, len(containers))
	for _, container := range containers {
		digest, ok := running[container.Name]
		if !ok {
			digest = core.Unknown
		}
		containerObservations = append(containerObservations, core.ContainerObservation{
			ContainerName: container.Name,
			Image:         container.Image,
			PullPolicy:    container.PullPolicy,
			Running:       digest,
		})
	}

	return core.WorkloadObservation{Workload: workloadModel, Containers: containerObservations}, nil
}

// runningDigests joins a workload's pods into a per-container digest map:
// only Running pods whose container is reported Ready contribute a digest;
// a container with
// no such pod is left Unknown rather than absent, so the reconciler can
// still enumerate it as SkipNoChange.
func (e *Enumerator) runningDigests(ctx context.Context, raw RawWorkload) (map[string]core.RunningDigest, error) {
	if len(raw.Selector) == 0 {
		return map[string]core.RunningDigest{}, nil
	}

	pods, err := e.Lister.ListPodsBySelector(ctx, raw.Namespace, raw.Selector)
	if err != nil {
		return nil, core.Categorize(fmt.Errorf("list pods for %s/%s: %w", raw.Namespace, raw.Name, err), core.CategoryKubeAPIError)
	}

	running := make(map[string]core.RunningDigest)
	for _, pod := range pods {
		if pod.Phase != "Running" {
			continue
		}
		for _, status := range pod.Containers {
			if !status.Ready {
				continue
			}
			if _, already := running[status.ContainerName]; already {
				continue
			}
			digest := digestFromImageID(status.ImageID)
			if digest == "" {
				continue
			}
			running[status.ContainerName] = core.KnownDigest(digest)
		}
	}
	return running, nil
}

// digestFromImageID extracts the @sha256:... suffix from an imageID value
// such as "docker-pullable://ghcr.io/org/img@sha256:...", tolerating the
// container-runtime-specific scheme prefix some kubelets still report.
func digestFromImageID(imageID string) string {
	for i := len(imageID) - 1; i >= 0; i-- {
		if imageID[i] == '@' {
			return imageID[i+1:]
		}
	}
	return ""
}
