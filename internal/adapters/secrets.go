package adapters

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/kube-autorollout/kube-autorollout/internal/credentials"
)

// SecretReader implements credentials.SecretReader against a typed
// client-go clientset.
type SecretReader struct {
	Clientset kubernetes.Interface
}

var _ credentials.SecretReader = &SecretReader{}

// ReadSecretKey implements credentials.SecretReader.
func (s *SecretReader) ReadSecretKey(ctx context.Context, namespace, name, key string) ([]byte, error) {
	secret, err := s.Clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get secret %s/%s: %w", namespace, name, err)
	}
	value, ok := secret.Data[key]
	if !ok {
		return nil, fmt.Errorf("secret %s/%s has no key %q", namespace, name, key)
	}
	return value, nil
}

// ReadDockerConfigSecret implements credentials.SecretReader.
func (s *SecretReader) ReadDockerConfigSecret(ctx context.Context, namespace, name string) ([]byte, error) {
	return s.ReadSecretKey(ctx, namespace, name, ".dockerconfigjson")
}
