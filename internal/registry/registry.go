// Package registry implements the OCI registry client (C4): it resolves
// the canonical digest for an image reference, handling the distribution
// spec's bearer-token challenge flow and an optional JFrog Artifactory
// path-method fallback.
package registry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kube-autorollout/kube-autorollout/internal/core"
	"github.com/kube-autorollout/kube-autorollout/internal/dockerconfig"
	"github.com/kube-autorollout/kube-autorollout/internal/imageref"
)

// manifestAcceptHeader lists the OCI and legacy Docker manifest media types,
// most specific first.
const manifestAcceptHeader = "application/vnd.oci.image.manifest.v1+json," +
	"application/vnd.oci.image.index.v1+json," +
	"application/vnd.docker.distribution.manifest.v2+json," +
	"application/vnd.docker.distribution.manifest.list.v2+json"

var digestPattern = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// Client resolves digests against one or more OCI registries.
type Client struct {
	httpClient                     *http.Client
	enableJfrogArtifactoryFallback bool
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithJfrogArtifactoryFallback toggles the Artifactory repository-path
// fallback, driven by featureFlags.enableJfrogArtifactoryFallback.
func WithJfrogArtifactoryFallback(enabled bool) Option {
	return func(c *Client) { c.enableJfrogArtifactoryFallback = enabled }
}

// New builds a Client trusting the system root pool plus any additional PEM
// files named by caCertificatePaths.
func New(caCertificatePaths []string, opts ...Option) (*Client, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	for _, path := range caCertificatePaths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("registry: read CA cert %s: %w", path, err)
		}
		if block, _ := pem.Decode(raw); block == nil {
			return nil, fmt.Errorf("registry: %s does not contain PEM data", path)
		}
		if !pool.AppendCertsFromPEM(raw) {
			return nil, fmt.Errorf("registry: %s contains no usable certificates", path)
		}
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
	}
	client := &Client{httpClient: &http.Client{Transport: transport, Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ResolveDigest HEADs the manifest endpoint, performs the bearer-token
// challenge on 401 if needed, and returns the canonical
// Docker-Content-Digest. On failure it optionally retries once against the
// JFrog Artifactory repository-path method.
func (c *Client) ResolveDigest(ctx context.Context, ref imageref.Reference, auth core.AuthMaterial) (string, error) {
	host := dockerconfig.NormalizeHost(ref.Host)
	manifestURL := manifestURL(host, ref.Repository, ref.Tag)

	response, err := c.headManifest(ctx, manifestURL, auth)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	digest, digestErr := digestFromResponse(response)
	if digestErr == nil {
		return digest, nil
	}

	if response.StatusCode == http.StatusUnauthorized {
		upgraded, challengeErr := c.challengeAndRetry(ctx, manifestURL, auth, response)
		if challengeErr != nil {
			return "", challengeErr
		}
		defer upgraded.Body.Close()
		response = upgraded
		digest, digestErr = digestFromResponse(response)
		if digestErr == nil {
			return digest, nil
		}
	}

	if c.enableJfrogArtifactoryFallback && isJfrogFallbackEligible(response) {
		fallbackURL, ok := artifactoryFallbackURL(host, ref.Repository, ref.Tag)
		if ok {
			fallbackResponse, err := c.headManifest(ctx, fallbackURL, auth)
			if err != nil {
				return "", err
			}
			defer fallbackResponse.Body.Close()
			if digest, err := digestFromResponse(fallbackResponse); err == nil {
				return digest, nil
			}
			return "", classifyStatus(fallbackResponse.StatusCode, fmt.Errorf("jfrog fallback %s returned %s", fallbackURL, fallbackResponse.Status))
		}
	}

	var registryErr *core.RegistryError
	if errors.As(digestErr, &registryErr) && registryErr.Kind == core.RegistryProtocol {
		return "", digestErr
	}
	return "", classifyStatus(response.StatusCode, fmt.Errorf("%s returned %s: %w", manifestURL, response.Status, digestErr))
}

func manifestURL(host, repository, tag string) string {
	return fmt.Sprintf("https://%s/v2/%s/manifests/%s", host, repository, tag)
}

// artifactoryFallbackURL builds the Artifactory repository-path URL:
// /artifactory/<first-path-segment>/v2/<remaining-repository>/manifests/<tag>.
func artifactoryFallbackURL(host, repository, tag string) (string, bool) {
	firstSegment, remainder, ok := strings.Cut(repository, "/")
	if !ok || firstSegment == "" || remainder == "" {
		return "", false
	}
	return fmt.Sprintf("https://%s/artifactory/%s/v2/%s/manifests/%s", host, firstSegment, remainder, tag), true
}

func (c *Client) headManifest(ctx context.Context, requestURL string, auth core.AuthMaterial) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: build request for %s: %w", requestURL, err)
	}
	request.Header.Set("Accept", manifestAcceptHeader)
	applyAuthHeader(request, auth)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, core.NewRegistryError(core.RegistryTransient, fmt.Errorf("%s: %w", requestURL, err))
	}
	return response, nil
}

func applyAuthHeader(request *http.Request, auth core.AuthMaterial) {
	switch auth.Kind {
	case core.AuthBasic:
		request.SetBasicAuth(auth.Username, auth.Password.Expose())
	case core.AuthBearer:
		request.Header.Set("Authorization", "Bearer "+auth.Token.Expose())
	}
}

func digestFromResponse(response *http.Response) (string, error) {
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("non-2xx status %s", response.Status)
	}
	digest := response.Header.Get("Docker-Content-Digest")
	if digest == "" {
		return "", core.NewRegistryError(core.RegistryProtocol, fmt.Errorf("response has no Docker-Content-Digest header"))
	}
	if !digestPattern.MatchString(digest) {
		return "", core.NewRegistryError(core.RegistryProtocol, fmt.Errorf("invalid digest format %q", digest))
	}
	return digest, nil
}

// challengeAndRetry parses the WWW-Authenticate challenge, fetches a token
// at its realm, and retries the manifest HEAD with the resulting bearer
// token.
func (c *Client) challengeAndRetry(ctx context.Context, manifestURL string, auth core.AuthMaterial, challenge *http.Response) (*http.Response, error) {
	params := parseWWWAuthenticate(challenge.Header.Get("WWW-Authenticate"))
	realm := params["realm"]
	if realm == "" {
		return nil, core.NewRegistryError(core.RegistryPermanent, fmt.Errorf("401 with no Bearer realm in WWW-Authenticate"))
	}

	token, err := c.exchangeToken(ctx, realm, params["service"], params["scope"], auth)
	if err != nil {
		return nil, err
	}

	return c.headManifest(ctx, manifestURL, core.Bearer(token))
}

// exchangeToken hits realm?service=...&scope=..., presenting whatever
// credential was already resolved: Basic as Basic, Opaque username+token
// as Basic, a bare bearer token as the password of an (optionally
// configured) username.
func (c *Client) exchangeToken(ctx context.Context, realm, service, scope string, auth core.AuthMaterial) (string, error) {
	values := url.Values{}
	if service != "" {
		values.Set("service", service)
	}
	if scope != "" {
		values.Set("scope", scope)
	}

	tokenURL := realm
	if encoded := values.Encode(); encoded != "" {
		tokenURL += "?" + encoded
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("registry: build token request: %w", err)
	}

	switch auth.Kind {
	case core.AuthBasic:
		request.SetBasicAuth(auth.Username, auth.Password.Expose())
	case core.AuthBearer:
		request.SetBasicAuth(auth.Username, auth.Token.Expose())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", core.NewRegistryError(core.RegistryTransient, fmt.Errorf("token exchange at %s: %w", realm, err))
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", classifyStatus(response.StatusCode, fmt.Errorf("token exchange at %s returned %s", realm, response.Status))
	}

	var tokenResponse struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(response.Body).Decode(&tokenResponse); err != nil {
		return "", core.NewRegistryError(core.RegistryProtocol, fmt.Errorf("decode token response from %s: %w", realm, err))
	}

	token := tokenResponse.Token
	if token == "" {
		token = tokenResponse.AccessToken
	}
	if token == "" {
		return "", core.NewRegistryError(core.RegistryProtocol, fmt.Errorf("token response from %s carries neither token nor access_token", realm))
	}
	return token, nil
}

var wwwAuthenticateParam = regexp.MustCompile(`(\w+)="([^"]*)"`)

func parseWWWAuthenticate(header string) map[string]string {
	params := make(map[string]string)
	for _, match := range wwwAuthenticateParam.FindAllStringSubmatch(header, -1) {
		params[match[1]] = match[2]
	}
	return params
}

// isJfrogFallbackEligible reports whether response is a 404/401 carrying
// an Artifactory fingerprint header, the trigger for the repository-path
// fallback.
func isJfrogFallbackEligible(response *http.Response) bool {
	if response.StatusCode != http.StatusNotFound && response.StatusCode != http.StatusUnauthorized {
		return false
	}
	for _, header := range []string{"X-Jfrog-Version", "X-Artifactory-Id", "X-Artifactory-Node-Id"} {
		if response.Header.Get(header) != "" {
			return true
		}
	}
	return false
}

// classifyStatus maps an HTTP status code to the registry error taxonomy:
// 5xx is transient, any other 4xx is permanent.
func classifyStatus(statusCode int, err error) error {
	if statusCode >= 500 {
		return core.NewRegistryError(core.RegistryTransient, err)
	}
	return core.NewRegistryError(core.RegistryPermanent, err)
}
