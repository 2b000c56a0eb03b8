// Package config holds the typed, validated configuration for
// kube-autorollout: registries, TLS roots, feature flags, and the cron
// schedule that drives reconciliation.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/kube-autorollout/kube-autorollout/internal/dockerconfig"
	"github.com/kube-autorollout/kube-autorollout/internal/secretstring"
)

// DefaultCronSchedule fires a reconciliation tick at seconds 0 and 45 of
// every minute.
const DefaultCronSchedule = "*/45 * * * * *"

// DefaultMaxConcurrentRegistryQueries bounds the per-tick registry fan-out.
const DefaultMaxConcurrentRegistryQueries = 8

// SecretType discriminates the tagged union carried by a RegistryEntry.
type SecretType string

const (
	SecretNone             SecretType = "None"
	SecretImagePullSecret  SecretType = "ImagePullSecret"
	SecretOpaque           SecretType = "Opaque"
)

// Secret is the resolved credential material attached to a RegistryEntry.
//
// Required fields depend on Type:
//   - None: no other field is used.
//   - ImagePullSecret: MountPath is required.
//   - Opaque: either Token, or both Name and Key, must be set. Username is
//     always optional and participates in the bearer-token exchange when set.
type Secret struct {
	Type      SecretType        `yaml:"type"`
	MountPath string            `yaml:"mountPath,omitempty"`
	Name      string            `yaml:"name,omitempty"`
	Key       string            `yaml:"key,omitempty"`
	Username  string            `yaml:"username,omitempty"`
	Token     secretstring.Secret `yaml:"token,omitempty"`
}

// RegistryEntry routes an image's registry host to authentication material.
type RegistryEntry struct {
	HostnamePattern string `yaml:"hostnamePattern"`
	Secret          Secret `yaml:"secret"`
}

// Webserver configures the liveness/readiness HTTP server.
type Webserver struct {
	Port int `yaml:"port"`
}

// TLS configures additional trust roots for the registry client.
type TLS struct {
	CACertificatePaths []string `yaml:"caCertificatePaths,omitempty"`
}

// FeatureFlags toggles optional, non-default behaviors.
type FeatureFlags struct {
	EnableJfrogArtifactoryFallback bool `yaml:"enableJfrogArtifactoryFallback,omitempty"`
	EnableKubectlAnnotation        bool `yaml:"enableKubectlAnnotation,omitempty"`
}

// Config is the fully validated, process-wide configuration.
type Config struct {
	CronSchedule                 string          `yaml:"cronSchedule,omitempty"`
	Webserver                    Webserver       `yaml:"webserver"`
	Registries                   []RegistryEntry `yaml:"registries,omitempty"`
	TLS                          TLS             `yaml:"tls,omitempty"`
	FeatureFlags                 FeatureFlags    `yaml:"featureFlags,omitempty"`
	MaxConcurrentRegistryQueries int             `yaml:"maxConcurrentRegistryQueries,omitempty"`
}

// Load reads the YAML file at path, expands ${VAR} environment references,
// unmarshals it into a Config, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded, err := expandEnvVars(string(raw))
	if err != nil {
		return nil, fmt.Errorf("config: expand env vars in %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CronSchedule == "" {
		c.CronSchedule = DefaultCronSchedule
	}
	if c.MaxConcurrentRegistryQueries <= 0 {
		c.MaxConcurrentRegistryQueries = DefaultMaxConcurrentRegistryQueries
	}
}

// Validate enforces unique hostname patterns, internally consistent secret
// variants, a parseable cron expression, and existing TLS root files.
func (c *Config) Validate() error {
	if _, err := parseCron(c.CronSchedule); err != nil {
		return fmt.Errorf("cronSchedule %q: %w", c.CronSchedule, err)
	}

	seen := make(map[string]struct{}, len(c.Registries))
	for _, entry := range c.Registries {
		if entry.HostnamePattern == "" {
			return fmt.Errorf("registries: hostnamePattern is required")
		}
		if err := validateHostnamePatternGrammar(entry.HostnamePattern); err != nil {
			return fmt.Errorf("registries: hostnamePattern %q: %w", entry.HostnamePattern, err)
		}
		// Normalize through the same function hostmatch.Resolve uses, so
		// docker.io, index.docker.io, and registry-1.docker.io collide here
		// as duplicates instead of passing validation and then resolving
		// non-deterministically at match time.
		key := dockerconfig.NormalizeHost(entry.HostnamePattern)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("registries: duplicate hostnamePattern %q", entry.HostnamePattern)
		}
		seen[key] = struct{}{}

		if err := entry.Secret.validate(); err != nil {
			return fmt.Errorf("registries[%s].secret: %w", entry.HostnamePattern, err)
		}
	}

	for _, certPath := range c.TLS.CACertificatePaths {
		if _, err := os.Stat(certPath); err != nil {
			return fmt.Errorf("tls.caCertificatePaths: %s: %w", certPath, err)
		}
	}

	return nil
}

// validateHostnamePatternGrammar rejects anything other than an exact host
// or a single leading "*." wildcard, e.g. "registry.*.com" or "**.foo.com".
func validateHostnamePatternGrammar(pattern string) error {
	if !strings.Contains(pattern, "*") {
		return nil
	}
	if strings.Count(pattern, "*") == 1 && strings.HasPrefix(pattern, "*.") && len(pattern) > 2 {
		return nil
	}
	return fmt.Errorf("must be an exact host or a single leading \"*.\" wildcard")
}

func (s Secret) validate() error {
	switch s.Type {
	case SecretNone, "":
		return nil
	case SecretImagePullSecret:
		if s.MountPath == "" {
			return fmt.Errorf("type %s requires mountPath", SecretImagePullSecret)
		}
		return nil
	case SecretOpaque:
		hasToken := !s.Token.IsEmpty()
		hasSecretRef := s.Name != "" && s.Key != ""
		if !hasToken && !hasSecretRef {
			return fmt.Errorf("type %s requires either token or name+key", SecretOpaque)
		}
		return nil
	default:
		return fmt.Errorf("unknown secret type %q", s.Type)
	}
}

func parseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces every ${VAR} occurrence with the value of the
// environment variable VAR. Missing variables are a hard error rather than
// silently expanding to an empty string, since an absent registry token is
// a startup-fatal misconfiguration, not a runtime one.
func expandEnvVars(input string) (string, error) {
	var missing []string
	result := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variable(s): %s", strings.Join(missing, ", "))
	}
	return result, nil
}
