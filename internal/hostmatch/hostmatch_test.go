package hostmatch

import (
	"errors"
	"testing"
)

func TestResolveExactBeatsWildcard(t *testing.T) {
	entries := []Entry{
		{Pattern: "*.example.com", Index: 0},
		{Pattern: "registry.example.com", Index: 1},
	}
	idx, err := Resolve("registry.example.com", entries)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if idx != 1 {
		t.Fatalf("Resolve returned index %d, want 1 (exact match)", idx)
	}
}

func TestResolveLongerSuffixWins(t *testing.T) {
	entries := []Entry{
		{Pattern: "*.com", Index: 0},
		{Pattern: "*.example.com", Index: 1},
	}
	idx, err := Resolve("registry.example.com", entries)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if idx != 1 {
		t.Fatalf("Resolve returned index %d, want 1 (more specific wildcard)", idx)
	}
}

func TestResolveWildcardMatchesMultipleLabels(t *testing.T) {
	entries := []Entry{{Pattern: "*.a.b", Index: 0}}
	for _, host := range []string{"x.a.b", "x.y.a.b"} {
		if _, err := Resolve(host, entries); err != nil {
			t.Fatalf("Resolve(%q): %v", host, err)
		}
	}
}

func TestResolveWildcardRequiresNonEmptyLabel(t *testing.T) {
	entries := []Entry{{Pattern: "*.a.b", Index: 0}}
	if _, err := Resolve("a.b", entries); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("Resolve(a.b) = %v, want ErrNoMatch", err)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	entries := []Entry{{Pattern: "GHCR.io", Index: 0}}
	if _, err := Resolve("ghcr.IO", entries); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}

func TestResolveNoMatch(t *testing.T) {
	entries := []Entry{{Pattern: "*.example.com", Index: 0}}
	if _, err := Resolve("ghcr.io", entries); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("Resolve = %v, want ErrNoMatch", err)
	}
}

func TestResolveAmbiguousWildcards(t *testing.T) {
	// Defensive: two distinct patterns with equal-length suffixes that both
	// match the same host. Unreachable under config's uniqueness invariant
	// in practice, but Resolve must not silently pick one if it happens.
	entries := []Entry{
		{Pattern: "*.a.b", Index: 0},
		{Pattern: "*.A.B", Index: 1}, // same pattern, different case
	}
	if _, err := Resolve("x.a.b", entries); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("Resolve = %v, want ErrAmbiguous", err)
	}
}

func TestResolveDockerHubAliasesMatchAcrossSpellings(t *testing.T) {
	entries := []Entry{{Pattern: "registry-1.docker.io", Index: 0}}
	for _, host := range []string{"docker.io", "index.docker.io", "registry-1.docker.io"} {
		idx, err := Resolve(host, entries)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", host, err)
		}
		if idx != 0 {
			t.Fatalf("Resolve(%q) = %d, want 0", host, idx)
		}
	}
}

func TestResolveDockerHubAliasPatternMatchesUnqualifiedHost(t *testing.T) {
	// An unqualified image reference (e.g. "nginx:latest") defaults its host
	// to "docker.io" per imageref.Parse, while a config entry may spell the
	// pattern as "index.docker.io" or any other alias.
	entries := []Entry{{Pattern: "index.docker.io", Index: 0}}
	if idx, err := Resolve("docker.io", entries); err != nil || idx != 0 {
		t.Fatalf("Resolve(docker.io) = (%d, %v), want (0, nil)", idx, err)
	}
}

func TestResolvePortIsPartOfHost(t *testing.T) {
	entries := []Entry{
		{Pattern: "registry.internal:5000", Index: 0},
		{Pattern: "registry.internal", Index: 1},
	}
	idx, err := Resolve("registry.internal:5000", entries)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if idx != 0 {
		t.Fatalf("Resolve returned %d, want 0 (port-qualified exact match)", idx)
	}
}
