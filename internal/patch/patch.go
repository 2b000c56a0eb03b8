// Package patch implements the patch engine (C8): it triggers a rollout by
// setting exactly one annotation on a workload's pod template.
package patch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kube-autorollout/kube-autorollout/internal/core"
)

// Applier issues the strategic-merge PATCH against the Kubernetes API.
type Applier interface {
	ApplyAnnotationPatch(ctx context.Context, target core.Workload, patchJSON []byte) error
}

// Engine implements C8.
type Engine struct {
	Applier                 Applier
	EnableKubectlAnnotation bool
}

// New constructs an Engine. enableKubectlAnnotation mirrors
// featureFlags.enableKubectlAnnotation.
func New(applier Applier, enableKubectlAnnotation bool) *Engine {
	return &Engine{Applier: applier, EnableKubectlAnnotation: enableKubectlAnnotation}
}

// AnnotationKey returns the annotation this Engine sets.
func (e *Engine) AnnotationKey() string {
	if e.EnableKubectlAnnotation {
		return core.KubectlRestartedAtAnnotation
	}
	return core.RestartedAtAnnotation
}

// Trigger applies the restart annotation patch to target. now is injected
// so tests can assert on an exact timestamp; callers pass time.Now().UTC().
//
// The patch never touches containers, labels, selectors, replicas, or any
// field outside spec.template.metadata.annotations: it is built by hand as
// a minimal strategic-merge document rather than by round-tripping a full
// object, so there is no field for an accidental mutation to hide in.
func (e *Engine) Trigger(ctx context.Context, target core.Workload, now time.Time) error {
	document, err := buildPatch(e.AnnotationKey(), now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("patch: build patch document: %w", err)
	}

	if err := e.Applier.ApplyAnnotationPatch(ctx, target, document); err != nil {
		return core.Categorize(fmt.Errorf("patch: %s/%s: %w", target.Namespace, target.Name, err), core.CategoryKubeAPIError)
	}
	return nil
}

func buildPatch(annotationKey, timestamp string) ([]byte, error) {
	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]string{
						annotationKey: timestamp,
					},
				},
			},
		},
	}
	return json.Marshal(patch)
}
