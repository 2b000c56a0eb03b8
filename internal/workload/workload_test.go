package workload

import (
	"context"
	"testing"

	"github.com/go-logr/logr"

	"github.com/kube-autorollout/kube-autorollout/internal/core"
)

type fakeLister struct {
	workloads []RawWorkload
	pods      map[string][]RawPod // keyed by namespace, selector match is ignored for simplicity
}

func (f *fakeLister) ListEnabledWorkloads(_ context.Context, _ string) ([]RawWorkload, error) {
	return f.workloads, nil
}

func (f *fakeLister) ListPodsBySelector(_ context.Context, namespace string, _ map[string]string) ([]RawPod, error) {
	return f.pods[namespace], nil
}

func TestEnumerateJoinsRunningDigest(t *testing.T) {
	lister := &fakeLister{
		workloads: []RawWorkload{{
			Kind: core.KindDeployment, Namespace: "apps", Name: "web", UID: "u1",
			Containers: []RawContainer{{Name: "app", Image: "nginx:latest", PullPolicy: "Always"}},
			Selector:   map[string]string{"app": "web"},
		}},
		pods: map[string][]RawPod{
			"apps": {{Phase: "Running", Containers: []PodContainerStatus{
				{ContainerName: "app", Ready: true, ImageID: "docker-pullable://docker.io/library/nginx@sha256:" + sixtyFourHex()},
			}}},
		},
	}

	enumerator := New(lister, "apps", logr.Discard())
	observations, err := enumerator.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(observations) != 1 || len(observations[0].Containers) != 1 {
		t.Fatalf("observations = %+v", observations)
	}
	running := observations[0].Containers[0].Running
	if !running.Known || running.Digest != "sha256:"+sixtyFourHex() {
		t.Fatalf("running digest = %+v", running)
	}
}

func TestEnumerateUnknownWhenNoRunningPod(t *testing.T) {
	lister := &fakeLister{
		workloads: []RawWorkload{{
			Kind: core.KindDeployment, Namespace: "apps", Name: "web", UID: "u1",
			Containers: []RawContainer{{Name: "app", Image: "nginx:latest", PullPolicy: "Always"}},
			Selector:   map[string]string{"app": "web"},
		}},
	}

	enumerator := New(lister, "apps", logr.Discard())
	observations, err := enumerator.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	running := observations[0].Containers[0].Running
	if running.Known {
		t.Fatalf("running = %+v, want Unknown", running)
	}
}

func TestEnumerateIgnoresNotReadyContainer(t *testing.T) {
	lister := &fakeLister{
		workloads: []RawWorkload{{
			Kind: core.KindDeployment, Namespace: "apps", Name: "web", UID: "u1",
			Containers: []RawContainer{{Name: "app", Image: "nginx:latest", PullPolicy: "Always"}},
			Selector:   map[string]string{"app": "web"},
		}},
		pods: map[string][]RawPod{
			"apps": {{Phase: "Running", Containers: []PodContainerStatus{
				{ContainerName: "app", Ready: false, ImageID: "docker.io/library/nginx@sha256:" + sixtyFourHex()},
			}}},
		},
	}

	enumerator := New(lister, "apps", logr.Discard())
	observations, err := enumerator.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if observations[0].Containers[0].Running.Known {
		t.Fatalf("expected Unknown for a not-ready container")
	}
}

func TestEnumerateSkipsInvalidImageReference(t *testing.T) {
	lister := &fakeLister{
		workloads: []RawWorkload{{
			Kind: core.KindDeployment, Namespace: "apps", Name: "web", UID: "u1",
			Containers: []RawContainer{
				{Name: "bad", Image: "", PullPolicy: "Always"},
				{Name: "good", Image: "nginx:latest", PullPolicy: "Always"},
			},
			Selector: map[string]string{"app": "web"},
		}},
	}

	enumerator := New(lister, "apps", logr.Discard())
	observations, err := enumerator.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(observations[0].Containers) != 1 || observations[0].Containers[0].ContainerName != "good" {
		t.Fatalf("containers = %+v, want only 'good'", observations[0].Containers)
	}
}

func sixtyFourHex() string {
	return "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
}
