package dockerconfig

import "testing"

func TestParseDecodesBase64Auth(t *testing.T) {
	raw := []byte(`{"auths":{"ghcr.io":{"auth":"YWxpY2U6dG9wc2VjcmV0"}}}`)
	auth, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	entry, ok := auth.Lookup("ghcr.io")
	if !ok {
		t.Fatalf("expected entry for ghcr.io")
	}
	if entry.Username != "alice" || entry.Password != "topsecret" {
		t.Fatalf("entry = %+v, want alice/topsecret", entry)
	}
}

func TestParseUsesExplicitFields(t *testing.T) {
	raw := []byte(`{"auths":{"registry.internal":{"username":"bob","password":"hunter2"}}}`)
	auth, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	entry, ok := auth.Lookup("registry.internal")
	if !ok || entry.Username != "bob" || entry.Password != "hunter2" {
		t.Fatalf("entry = %+v, ok=%v, want bob/hunter2", entry, ok)
	}
}

func TestParseRejectsMalformedAuth(t *testing.T) {
	raw := []byte(`{"auths":{"ghcr.io":{"auth":"bm90YWNvbG9u"}}}`)
	if _, err := Parse(raw); err == nil {
		t.Fatalf("expected error for auth field without ':' separator")
	}
}

func TestNormalizeHostMapsDockerHubAliases(t *testing.T) {
	for _, alias := range []string{"docker.io", "index.docker.io", "registry-1.docker.io", "https://docker.io/"} {
		if got := NormalizeHost(alias); got != CanonicalDockerHubHost {
			t.Fatalf("NormalizeHost(%q) = %q, want %q", alias, got, CanonicalDockerHubHost)
		}
	}
}

func TestNormalizeHostStripsSchemeAndPath(t *testing.T) {
	got := NormalizeHost("https://registry.example.com/some/path")
	if got != "registry.example.com" {
		t.Fatalf("NormalizeHost = %q, want registry.example.com", got)
	}
}

func TestLookupAcceptsAnyDockerHubAlias(t *testing.T) {
	raw := []byte(`{"auths":{"https://index.docker.io/v1/":{"username":"carol","password":"pw"}}}`)
	auth, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := auth.Lookup("docker.io"); !ok {
		t.Fatalf("expected docker.io to resolve to the index.docker.io entry")
	}
}
