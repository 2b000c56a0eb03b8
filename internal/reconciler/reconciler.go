// Package reconciler implements the reconciler (C6): on each tick it
// enumerates workloads, resolves the distinct registry triplets they
// reference with bounded concurrency, decides per workload whether a
// restart is warranted, and applies the patch.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/kube-autorollout/kube-autorollout/internal/core"
	"github.com/kube-autorollout/kube-autorollout/internal/imageref"
	"github.com/kube-autorollout/kube-autorollout/internal/observability/metrics"
)

// DefaultMaxConcurrentRegistryQueries mirrors config.DefaultMaxConcurrentRegistryQueries,
// kept local so this package does not need to import internal/config just
// for one constant.
const DefaultMaxConcurrentRegistryQueries = 8

// Enumerator lists workloads joined with their running digests (C5).
type Enumerator interface {
	Enumerate(ctx context.Context) ([]core.WorkloadObservation, error)
}

// CredentialResolver resolves the AuthMaterial for an image reference (C3).
type CredentialResolver interface {
	Resolve(ctx context.Context, ref imageref.Reference, pullSecretNames []string, canReadSecrets bool) (core.AuthMaterial, error)
}

// RegistryClient resolves the canonical digest of an image reference (C4).
type RegistryClient interface {
	ResolveDigest(ctx context.Context, ref imageref.Reference, auth core.AuthMaterial) (string, error)
}

// PatchTrigger applies the restart annotation patch to a workload (C8).
type PatchTrigger interface {
	Trigger(ctx context.Context, target core.Workload, now time.Time) error
}

// EventRecorder surfaces a tick's per-workload outcomes as Kubernetes
// Events, so kubectl describe/get events shows them next to the workload
// they concern. Nil-safe: a Reconciler with no Events set skips emission.
type EventRecorder interface {
	RolloutTriggered(target core.Workload, reason string)
	LookupFailed(target core.Workload, reason string)
}

// Reconciler implements C6.
type Reconciler struct {
	Enumerator  Enumerator
	Credentials CredentialResolver
	Registry    RegistryClient
	Patch       PatchTrigger
	Events      EventRecorder
	Logger      logr.Logger

	// CanReadPullSecrets gates the pod pull-secret fallback: reading
	// Secrets needs RBAC the controller may lack.
	CanReadPullSecrets bool

	// MaxConcurrentRegistryQueries bounds the per-tick registry fan-out.
	// Zero falls back to DefaultMaxConcurrentRegistryQueries.
	MaxConcurrentRegistryQueries int

	// Clock returns the current time, overridable in tests. Defaults to
	// time.Now.
	Clock func() time.Time
}

// New constructs a Reconciler.
func New(enumerator Enumerator, credentials CredentialResolver, registry RegistryClient, patch PatchTrigger, canReadPullSecrets bool, maxConcurrentRegistryQueries int, logger logr.Logger) *Reconciler {
	return &Reconciler{
		Enumerator:                   enumerator,
		Credentials:                  credentials,
		Registry:                     registry,
		Patch:                        patch,
		Logger:                       logger,
		CanReadPullSecrets:           canReadPullSecrets,
		MaxConcurrentRegistryQueries: maxConcurrentRegistryQueries,
		Clock:                        time.Now,
	}
}

// digestResult is the outcome of resolving one (host, repository, tag)
// triplet against the registry for a tick.
type digestResult struct {
	Digest string
	Err    error
}

// tripletWork carries what a triplet's registry lookup needs: the
// reference itself, and the pull-secret names of whichever workload
// referenced it first (only consulted by the credential resolver's
// fallback path, since a matched RegistryEntry is host-keyed and
// therefore identical for every workload sharing a triplet).
type tripletWork struct {
	ref             imageref.Reference
	pullSecretNames []string
}

// Tick runs one reconciliation pass: enumerate workloads, resolve the
// distinct registry triplets they reference, decide per workload, and
// apply patches. Enumeration failures abort the tick (there is nothing to
// reconcile without a workload list); every other failure is contained to
// the image or workload it concerns without skipping the rest. Failures
// are aggregated into the returned error, except retryable patch failures
// (conflict, throttling, timeout), which are only logged and left for the
// next tick.
func (r *Reconciler) Tick(ctx context.Context) error {
	start := r.Clock()
	tickErrors := r.tick(ctx)
	metrics.RecordTick(r.Clock().Sub(start), tickErrors)
	return tickErrors
}

func (r *Reconciler) tick(ctx context.Context) error {
	observations, err := r.Enumerator.Enumerate(ctx)
	if err != nil {
		metrics.RecordError(core.CategoryOf(err))
		return fmt.Errorf("reconciler: enumerate: %w", err)
	}

	work := distinctTriplets(observations, r.Logger)
	results := r.resolveTriplets(ctx, work)

	var tickErrors error
	for _, observation := range observations {
		decision, failure := decide(observation, results)
		metrics.RecordDecision(decision.Kind)
		r.Logger.Info("workload decision",
			"workload", observation.Workload.NamespacedName().String(),
			"decision", decisionName(decision.Kind),
			"reason", decision.Reason)

		if decision.Kind == core.SkipWarning {
			metrics.RecordError(categoryFor(failure))
			if r.Events != nil {
				r.Events.LookupFailed(observation.Workload, decision.Reason)
			}
			tickErrors = multierr.Append(tickErrors, fmt.Errorf("%s: %s", observation.Workload.NamespacedName(), decision.Reason))
		}
		if decision.Kind != core.Patch {
			continue
		}

		err := r.Patch.Trigger(ctx, observation.Workload, r.Clock().UTC())
		metrics.RecordPatch(err)
		if err != nil {
			metrics.RecordError(core.CategoryOf(err))
			if core.IsRetryableKubeError(err) {
				// A patch conflict (or API throttle/timeout) is not a hard
				// failure: the next tick re-decides and re-patches from
				// scratch, so it is logged, not aggregated.
				r.Logger.Info("patch will be retried next tick", "workload", observation.Workload.NamespacedName().String(), "error", err.Error())
				continue
			}
			tickErrors = multierr.Append(tickErrors, fmt.Errorf("patch %s: %w", observation.Workload.NamespacedName(), err))
			continue
		}
		if r.Events != nil {
			r.Events.RolloutTriggered(observation.Workload, decision.Reason)
		}
	}

	if tickErrors != nil {
		r.Logger.Error(tickErrors, "tick completed with errors")
	}
	return tickErrors
}

// distinctTriplets collects the (host, repository, tag) triplets that need
// a registry lookup this tick, one entry per triplet regardless of how
// many workloads or containers reference it. Digest-pinned containers
// (image@sha256:...) are excluded: their "fresh digest" is the pinned
// digest itself, which never drifts from the registry's point of view, so
// they never enter the fan-out.
func distinctTriplets(observations []core.WorkloadObservation, logger logr.Logger) map[core.Triplet]tripletWork {
	work := make(map[core.Triplet]tripletWork)
	skippedPinned := 0
	for _, observation := range observations {
		for _, container := range observation.Containers {
			if container.Image.Digest != "" {
				skippedPinned++
				continue
			}
			triplet := tripletOf(container.Image)
			if _, exists := work[triplet]; exists {
				continue
			}
			work[triplet] = tripletWork{ref: container.Image, pullSecretNames: observation.Workload.PullSecretNames}
		}
	}
	if skippedPinned > 0 {
		logger.Info("skipped digest-pinned containers in fan-out", "count", skippedPinned)
	}
	return work
}

func tripletOf(ref imageref.Reference) core.Triplet {
	return core.Triplet{Host: ref.Host, Repository: ref.Repository, Tag: ref.Tag}
}

// resolveTriplets runs a bounded-concurrency fan-out over the distinct
// triplets, each independently resolving credentials and querying the
// registry. A single triplet's failure is recorded against it and never
// aborts the others.
func (r *Reconciler) resolveTriplets(ctx context.Context, work map[core.Triplet]tripletWork) map[core.Triplet]digestResult {
	results := make(map[core.Triplet]digestResult, len(work))
	if len(work) == 0 {
		return results
	}

	limit := r.MaxConcurrentRegistryQueries
	if limit <= 0 {
		limit = DefaultMaxConcurrentRegistryQueries
	}

	sem := semaphore.NewWeighted(int64(limit))
	var waitGroup sync.WaitGroup
	var mutex sync.Mutex

	for triplet, item := range work {
		triplet, item := triplet, item

		if err := sem.Acquire(ctx, 1); err != nil {
			mutex.Lock()
			results[triplet] = digestResult{Err: fmt.Errorf("reconciler: %s: %w", triplet, err)}
			mutex.Unlock()
			continue
		}

		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			defer sem.Release(1)

			digest, err := r.resolveOne(ctx, item)

			mutex.Lock()
			results[triplet] = digestResult{Digest: digest, Err: err}
			mutex.Unlock()
		}()
	}

	waitGroup.Wait()
	return results
}

func (r *Reconciler) resolveOne(ctx context.Context, item tripletWork) (string, error) {
	auth, err := r.Credentials.Resolve(ctx, item.ref, item.pullSecretNames, r.CanReadPullSecrets)
	if err != nil {
		return "", core.Categorize(fmt.Errorf("resolve credentials for %s: %w", item.ref, err), core.CategoryAuthUnresolved)
	}

	digest, err := r.Registry.ResolveDigest(ctx, item.ref, auth)
	metrics.RecordRegistryQuery(err)
	if err != nil {
		return "", fmt.Errorf("resolve digest for %s: %w", item.ref, err)
	}
	return digest, nil
}

// decide turns a workload's per-container observations into a rollout
// decision. A failed lookup on any container takes precedence over an
// observed drift on another: patching on incomplete information risks
// restarting a workload that was actually fine. The returned error is the
// underlying lookup failure behind a SkipWarning decision, nil otherwise —
// used only so the caller can record its error category in metrics.
func decide(observation core.WorkloadObservation, results map[core.Triplet]digestResult) (core.RolloutDecision, error) {
	hasFailure := false
	anyKnownDiffers := false
	allUnknown := true
	var failureReason string
	var failure error

	for _, container := range observation.Containers {
		fresh, err := freshDigestFor(container, results)
		if err != nil {
			hasFailure = true
			failureReason = fmt.Sprintf("container %s: %v", container.ContainerName, err)
			failure = err
			continue
		}
		if !container.Running.Known {
			continue
		}
		allUnknown = false
		if fresh != container.Running.Digest {
			anyKnownDiffers = true
		}
	}

	switch {
	case hasFailure:
		return core.RolloutDecision{Kind: core.SkipWarning, Reason: failureReason}, failure
	case allUnknown:
		return core.RolloutDecision{Kind: core.SkipNoChange, Reason: "no running pod reports a digest for any container"}, nil
	case anyKnownDiffers:
		return core.RolloutDecision{Kind: core.Patch, Reason: "running digest differs from registry"}, nil
	default:
		return core.RolloutDecision{Kind: core.SkipNoChange, Reason: "running digest matches registry"}, nil
	}
}

// categoryFor maps a lookup failure to its error category, covering both
// CategorizedError (credential resolution) and RegistryError (registry
// client) failures.
func categoryFor(err error) core.ErrorCategory {
	if category := core.CategoryOf(err); category != "" {
		return category
	}
	var registryErr *core.RegistryError
	if errors.As(err, &registryErr) {
		switch registryErr.Kind {
		case core.RegistryTransient:
			return core.CategoryRegistryTransient
		default:
			return core.CategoryRegistryPermanent
		}
	}
	return ""
}

func freshDigestFor(container core.ContainerObservation, results map[core.Triplet]digestResult) (string, error) {
	if container.Image.Digest != "" {
		return container.Image.Digest, nil
	}
	triplet := tripletOf(container.Image)
	result, ok := results[triplet]
	if !ok {
		return "", fmt.Errorf("no digest resolved for %s", triplet)
	}
	if result.Err != nil {
		return "", result.Err
	}
	return result.Digest, nil
}

func decisionName(kind core.DecisionKind) string {
	switch kind {
	case core.SkipNoChange:
		return "SkipNoChange"
	case core.SkipWarning:
		return "SkipWarning"
	case core.Patch:
		return "Patch"
	default:
		return "Unknown"
	}
}
