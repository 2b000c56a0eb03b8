package adapters

import (
	"context"
	"fmt"

	authv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// CanReadSecrets reports whether the controller's own service account can
// get Secrets in namespace, via a SelfSubjectAccessReview. The credential
// resolver gates the pod pull-secret fallback on this, since reading
// Secrets needs RBAC the controller may not have been granted.
func CanReadSecrets(ctx context.Context, clientset kubernetes.Interface, namespace string) (bool, error) {
	review := &authv1.SelfSubjectAccessReview{
		Spec: authv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authv1.ResourceAttributes{
				Namespace: namespace,
				Verb:      "get",
				Resource:  "secrets",
			},
		},
	}

	result, err := clientset.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return false, fmt.Errorf("adapters: SelfSubjectAccessReview: %w", err)
	}
	return result.Status.Allowed, nil
}
