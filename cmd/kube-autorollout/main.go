package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/kube-autorollout/kube-autorollout/internal/adapters"
	"github.com/kube-autorollout/kube-autorollout/internal/config"
	"github.com/kube-autorollout/kube-autorollout/internal/credentials"
	"github.com/kube-autorollout/kube-autorollout/internal/patch"
	"github.com/kube-autorollout/kube-autorollout/internal/reconciler"
	"github.com/kube-autorollout/kube-autorollout/internal/registry"
	"github.com/kube-autorollout/kube-autorollout/internal/scheduler"
	"github.com/kube-autorollout/kube-autorollout/internal/webserver"
	"github.com/kube-autorollout/kube-autorollout/internal/workload"
)

// shutdownGracePeriod bounds how long an in-flight tick is allowed to run
// after a shutdown signal before the process exits anyway.
const shutdownGracePeriod = 30 * time.Second

func main() {
	logger := zap.New(zap.UseDevMode(false))

	if err := run(logger); err != nil {
		logger.Error(err, "kube-autorollout exited with an error")
		os.Exit(1)
	}
}

func run(logger logr.Logger) error {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		return fmt.Errorf("main: CONFIG_FILE environment variable is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("main: load config: %w", err)
	}

	namespace, err := processNamespace()
	if err != nil {
		return fmt.Errorf("main: determine namespace: %w", err)
	}

	restConfig, err := adapters.RESTConfig()
	if err != nil {
		return fmt.Errorf("main: build rest config: %w", err)
	}

	clientset, err := adapters.NewClientset(restConfig)
	if err != nil {
		return fmt.Errorf("main: build clientset: %w", err)
	}

	controllerRuntimeClient, err := adapters.NewControllerRuntimeClient(restConfig)
	if err != nil {
		return fmt.Errorf("main: build controller-runtime client: %w", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	canReadSecrets, err := adapters.CanReadSecrets(startupCtx, clientset, namespace)
	cancelStartup()
	if err != nil {
		logger.Error(err, "could not determine secret-read permission, assuming none")
		canReadSecrets = false
	}

	registryClient, err := registry.New(cfg.TLS.CACertificatePaths, registry.WithJfrogArtifactoryFallback(cfg.FeatureFlags.EnableJfrogArtifactoryFallback))
	if err != nil {
		return fmt.Errorf("main: build registry client: %w", err)
	}

	secretReader := &adapters.SecretReader{Clientset: clientset}
	credentialResolver := credentials.New(cfg, secretReader, namespace)

	workloadLister := &adapters.WorkloadLister{Clientset: clientset}
	enumerator := workload.New(workloadLister, namespace, logger.WithName("workload"))

	patchApplier := &adapters.PatchApplier{Client: controllerRuntimeClient}
	patchEngine := patch.New(patchApplier, cfg.FeatureFlags.EnableKubectlAnnotation)

	recon := reconciler.New(enumerator, credentialResolver, registryClient, patchEngine, canReadSecrets, cfg.MaxConcurrentRegistryQueries, logger.WithName("reconciler"))
	recon.Events = adapters.NewEventRecorder(clientset)

	sched, err := scheduler.New(cfg.CronSchedule, recon.Tick, logger.WithName("scheduler"), shutdownGracePeriod)
	if err != nil {
		return fmt.Errorf("main: build scheduler: %w", err)
	}

	health := webserver.New(fmt.Sprintf(":%d", cfg.Webserver.Port))
	healthErrs := health.Start()

	sched.Start()
	health.SetReady(true)
	logger.Info("kube-autorollout started", "namespace", namespace, "cronSchedule", cfg.CronSchedule)

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-signalCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-healthErrs:
		if err != nil {
			return fmt.Errorf("main: health server: %w", err)
		}
	}

	health.SetReady(false)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), shutdownGracePeriod+5*time.Second)
	defer cancelStop()

	if err := sched.Stop(stopCtx); err != nil {
		logger.Error(err, "scheduler did not stop cleanly")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), webserver.DefaultShutdownTimeout)
	defer cancelShutdown()
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "health server did not shut down cleanly")
	}

	logger.Info("kube-autorollout stopped")
	return nil
}

// processNamespace prefers the POD_NAMESPACE env var (set via the downward
// API), falling back to the in-cluster service account namespace file.
func processNamespace() (string, error) {
	if namespace := os.Getenv("POD_NAMESPACE"); namespace != "" {
		return namespace, nil
	}
	raw, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace")
	if err != nil {
		return "", fmt.Errorf("neither POD_NAMESPACE nor the in-cluster namespace file is available: %w", err)
	}
	return string(raw), nil
}
