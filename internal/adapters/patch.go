package adapters

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kube-autorollout/kube-autorollout/internal/core"
	"github.com/kube-autorollout/kube-autorollout/internal/patch"
)

// PatchApplier implements patch.Applier with a standalone
// controller-runtime client.Client, using its RawPatch helper to issue a
// strategic-merge PATCH without round-tripping the full object, so the
// patch never touches any field but the annotation.
type PatchApplier struct {
	Client ctrlclient.Client
}

var _ patch.Applier = &PatchApplier{}

// ApplyAnnotationPatch implements patch.Applier.
func (p *PatchApplier) ApplyAnnotationPatch(ctx context.Context, target core.Workload, patchJSON []byte) error {
	object, err := emptyObjectFor(target)
	if err != nil {
		return err
	}

	rawPatch := ctrlclient.RawPatch(types.StrategicMergePatchType, patchJSON)
	if err := p.Client.Patch(ctx, object, rawPatch, ctrlclient.FieldOwner(core.FieldManager)); err != nil {
		return fmt.Errorf("patch %s %s/%s: %w", target.Kind, target.Namespace, target.Name, err)
	}
	return nil
}

func emptyObjectFor(target core.Workload) (ctrlclient.Object, error) {
	objectMeta := func(o ctrlclient.Object) ctrlclient.Object {
		o.SetNamespace(target.Namespace)
		o.SetName(target.Name)
		return o
	}

	switch target.Kind {
	case core.KindDeployment:
		return objectMeta(&appsv1.Deployment{}), nil
	case core.KindStatefulSet:
		return objectMeta(&appsv1.StatefulSet{}), nil
	case core.KindDaemonSet:
		return objectMeta(&appsv1.DaemonSet{}), nil
	default:
		return nil, fmt.Errorf("patch: unknown workload kind %q", target.Kind)
	}
}
