// Package adapters wires internal/core's domain types to the Kubernetes
// API, mirroring the teacher's pkg/adapters: a thin interface per concern
// (workload/pod listing, secret reads, annotation patching) backed by a
// concrete client-go/controller-runtime implementation, so the reconciler
// and credential resolver never import a Kubernetes client package
// directly.
package adapters

import (
	"fmt"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// RESTConfig builds a rest.Config, preferring in-cluster config and falling
// back to the local kubeconfig — the same fallback Glitchy-Sheep's
// internal/kube.NewClient uses, appropriate for a controller that may also
// run out-of-cluster during development.
func RESTConfig() (*rest.Config, error) {
	config, err := rest.InClusterConfig()
	if err == nil {
		return config, nil
	}

	kubeconfigPath := filepath.Join(homedir.HomeDir(), ".kube", "config")
	config, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("adapters: no in-cluster config and no usable kubeconfig at %s: %w", kubeconfigPath, err)
	}
	return config, nil
}

// NewClientset builds a typed client-go clientset for list/get operations
// (the workload enumerator and the credential resolver's secret reads).
func NewClientset(config *rest.Config) (kubernetes.Interface, error) {
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("adapters: build clientset: %w", err)
	}
	return clientset, nil
}

// NewControllerRuntimeClient builds a standalone controller-runtime
// client.Client (no Manager, since kube-autorollout has no watch-based
// reconcile loop) for the patch engine's strategic-merge helpers.
func NewControllerRuntimeClient(config *rest.Config) (ctrlclient.Client, error) {
	c, err := ctrlclient.New(config, ctrlclient.Options{})
	if err != nil {
		return nil, fmt.Errorf("adapters: build controller-runtime client: %w", err)
	}
	return c, nil
}
