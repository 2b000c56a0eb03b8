// Package credentials implements the credential resolver (C3): it turns an
// image reference, the owning workload's pull-secret names, and the
// process-wide config into the AuthMaterial the registry client presents.
package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kube-autorollout/kube-autorollout/internal/config"
	"github.com/kube-autorollout/kube-autorollout/internal/core"
	"github.com/kube-autorollout/kube-autorollout/internal/dockerconfig"
	"github.com/kube-autorollout/kube-autorollout/internal/hostmatch"
	"github.com/kube-autorollout/kube-autorollout/internal/imageref"
)

// DockerConfigFileName is the well-known key both image-pull secrets and
// ImagePullSecret mount paths carry the config under.
const DockerConfigFileName = ".dockerconfigjson"

// SecretReader abstracts the Kubernetes Secret reads the resolver needs, so
// internal/credentials never imports a Kubernetes client package directly.
type SecretReader interface {
	// ReadSecretKey returns the decoded value of a single key inside a
	// Secret, for Opaque(name, key) registry entries.
	ReadSecretKey(ctx context.Context, namespace, name, key string) ([]byte, error)
	// ReadDockerConfigSecret returns the raw .dockerconfigjson payload of a
	// kubernetes.io/dockerconfigjson Secret, for the pod pull-secret fallback.
	ReadDockerConfigSecret(ctx context.Context, namespace, name string) ([]byte, error)
}

// Resolver turns an image reference into the credential that should
// authenticate against its registry.
type Resolver struct {
	Config  *config.Config
	Secrets SecretReader
	// Namespace is the single namespace kube-autorollout watches, used for
	// every Secret read: both Opaque name+key registry entries and the
	// workload's own pull-secret fallback live in this namespace.
	Namespace   string
	hostEntries []hostmatch.Entry
}

// New constructs a Resolver over a validated Config. The hostmatch entry
// list is built once since Config is immutable after startup.
func New(cfg *config.Config, secrets SecretReader, namespace string) *Resolver {
	entries := make([]hostmatch.Entry, len(cfg.Registries))
	for i, registryEntry := range cfg.Registries {
		entries[i] = hostmatch.Entry{Pattern: registryEntry.HostnamePattern, Index: i}
	}
	return &Resolver{Config: cfg, Secrets: secrets, Namespace: namespace, hostEntries: entries}
}

// Resolve produces the AuthMaterial for ref: a matched RegistryEntry takes
// priority; absent a match, the workload's own pull-secret names are tried
// (only when canReadSecrets, since reading Secrets requires elevated RBAC
// the controller may not have); otherwise Anonymous.
func (r *Resolver) Resolve(ctx context.Context, ref imageref.Reference, pullSecretNames []string, canReadSecrets bool) (core.AuthMaterial, error) {
	networkHost := dockerconfig.NormalizeHost(ref.Host)

	if index, err := hostmatch.Resolve(networkHost, r.hostEntries); err == nil {
		return r.fromRegistryEntry(ctx, r.Config.Registries[index], networkHost)
	} else if err != hostmatch.ErrNoMatch {
		return core.Anonymous, fmt.Errorf("credentials: %w", err)
	}

	if canReadSecrets {
		for _, secretName := range pullSecretNames {
			raw, err := r.Secrets.ReadDockerConfigSecret(ctx, r.Namespace, secretName)
			if err != nil {
				continue
			}
			parsed, err := dockerconfig.Parse(raw)
			if err != nil {
				continue
			}
			if entry, ok := parsed.Lookup(networkHost); ok {
				return core.Basic(entry.Username, entry.Password), nil
			}
		}
	}

	return core.Anonymous, nil
}

func (r *Resolver) fromRegistryEntry(ctx context.Context, entry config.RegistryEntry, networkHost string) (core.AuthMaterial, error) {
	switch entry.Secret.Type {
	case config.SecretNone, "":
		return core.Anonymous, nil

	case config.SecretOpaque:
		return r.fromOpaqueSecret(ctx, entry.Secret)

	case config.SecretImagePullSecret:
		return r.fromMountedDockerConfig(entry, networkHost)

	default:
		return core.Anonymous, fmt.Errorf("credentials: unknown secret type %q", entry.Secret.Type)
	}
}

// fromOpaqueSecret resolves an Opaque registry entry: a hardcoded token
// wins over a name+key reference; a Username alongside a token is handed
// back as Basic so the registry client can present it as either Basic or
// the password half of a bearer exchange, depending on what the registry
// challenges for.
func (r *Resolver) fromOpaqueSecret(ctx context.Context, secret config.Secret) (core.AuthMaterial, error) {
	token := secret.Token.Expose()
	if token == "" && secret.Name != "" && secret.Key != "" {
		raw, err := r.Secrets.ReadSecretKey(ctx, r.Namespace, secret.Name, secret.Key)
		if err != nil {
			return core.Anonymous, fmt.Errorf("credentials: read secret %s/%s: %w", secret.Name, secret.Key, err)
		}
		token = string(raw)
	}
	if token == "" {
		return core.Anonymous, fmt.Errorf("credentials: Opaque secret has neither token nor resolvable name+key")
	}
	if secret.Username != "" {
		return core.Basic(secret.Username, token), nil
	}
	return core.Bearer(token), nil
}

// fromMountedDockerConfig resolves an ImagePullSecret registry entry:
// MountPath is a local directory (a projected volume on the controller's
// own pod) containing a .dockerconfigjson file. The lookup key is the
// image's own host, not entry.HostnamePattern, which may be a wildcard
// that never appears as a literal key in the file.
func (r *Resolver) fromMountedDockerConfig(entry config.RegistryEntry, networkHost string) (core.AuthMaterial, error) {
	path := filepath.Join(entry.Secret.MountPath, DockerConfigFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return core.Anonymous, fmt.Errorf("credentials: read %s: %w", path, err)
	}
	parsed, err := dockerconfig.Parse(raw)
	if err != nil {
		return core.Anonymous, fmt.Errorf("credentials: %s: %w", path, err)
	}
	creds, ok := parsed.Lookup(networkHost)
	if !ok {
		return core.Anonymous, fmt.Errorf("credentials: %s has no entry for %s", path, networkHost)
	}
	return core.Basic(creds.Username, creds.Password), nil
}
