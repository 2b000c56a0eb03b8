// Package dockerconfig parses the .dockerconfigjson payload carried by
// Kubernetes image-pull secrets (and by ImagePullSecret registry entries
// that mount the same file shape) into per-host basic-auth credentials.
package dockerconfig

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is the resolved basic-auth credential for one registry host.
type Entry struct {
	Username string
	Password string
}

// Auth is the parsed form of a .dockerconfigjson document: a mapping from
// normalized registry host to credentials.
type Auth map[string]Entry

type dockerConfigFile struct {
	Auths map[string]dockerConfigEntry `json:"auths"`
}

type dockerConfigEntry struct {
	Auth     string `json:"auth,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Parse decodes a .dockerconfigjson document. Each host key is normalized
// (NormalizeHost) before being stored, so later lookups may use any
// spelling of a host that the registry endpoint itself would accept.
func Parse(raw []byte) (Auth, error) {
	var file dockerConfigFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("dockerconfig: parse: %w", err)
	}

	auth := make(Auth, len(file.Auths))
	for host, entry := range file.Auths {
		username, password, err := decode(entry)
		if err != nil {
			return nil, fmt.Errorf("dockerconfig: host %q: %w", host, err)
		}
		auth[NormalizeHost(host)] = Entry{Username: username, Password: password}
	}
	return auth, nil
}

func decode(entry dockerConfigEntry) (username, password string, err error) {
	if entry.Auth != "" {
		decoded, err := base64.StdEncoding.DecodeString(entry.Auth)
		if err != nil {
			return "", "", fmt.Errorf("decode auth field: %w", err)
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			return "", "", fmt.Errorf("auth field is not user:pass")
		}
		return user, pass, nil
	}
	return entry.Username, entry.Password, nil
}

// Lookup returns the credential entry for host, trying every normalized
// spelling a caller might have stored the key under.
func (a Auth) Lookup(host string) (Entry, bool) {
	entry, ok := a[NormalizeHost(host)]
	return entry, ok
}

// dockerHubAliases are the host spellings that all address Docker Hub.
// Every alias normalizes to registry-1.docker.io, the host actually dialed
// for network operations, so config entries and dockerconfig keys written
// under any of the three spellings still match.
var dockerHubAliases = map[string]struct{}{
	"docker.io":            {},
	"index.docker.io":      {},
	"registry-1.docker.io": {},
}

// CanonicalDockerHubHost is the host kube-autorollout actually dials for
// any of the Docker Hub aliases.
const CanonicalDockerHubHost = "registry-1.docker.io"

// NormalizeHost strips scheme, trailing slash, and path component from a
// registry host key, then maps any Docker Hub alias to its canonical form.
func NormalizeHost(host string) string {
	normalized := strings.ToLower(strings.TrimSpace(host))
	normalized = strings.TrimPrefix(normalized, "https://")
	normalized = strings.TrimPrefix(normalized, "http://")
	if slash := strings.Index(normalized, "/"); slash != -1 {
		normalized = normalized[:slash]
	}
	normalized = strings.TrimSuffix(normalized, "/")
	if _, isDockerHub := dockerHubAliases[normalized]; isDockerHub {
		return CanonicalDockerHubHost
	}
	return normalized
}
