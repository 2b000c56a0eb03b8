// Package hostmatch resolves an image registry host to the single
// best-matching configured registry entry.
package hostmatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kube-autorollout/kube-autorollout/internal/dockerconfig"
)

// Entry is the minimal view of a configured registry entry that hostmatch
// needs: its pattern. The caller (internal/credentials) carries the richer
// type; hostmatch only needs the pattern and an opaque index to report
// matches by.
type Entry struct {
	Pattern string
	Index   int
}

// ErrAmbiguous is returned when two distinct patterns match a host with
// equal specificity: the safe behavior is to reject the match rather than
// silently pick one. With hostname-pattern uniqueness already enforced at
// config load time, this should be unreachable in practice; Resolve still
// checks for it so a latent bug in that upstream invariant fails loudly
// instead of matching a host to the wrong credentials.
var ErrAmbiguous = errors.New("hostmatch: ambiguous match")

// ErrNoMatch indicates no configured entry matches the host.
var ErrNoMatch = errors.New("hostmatch: no match")

// Resolve returns the index (into the caller's original slice) of the entry
// whose pattern best matches host: exact match beats any wildcard; among
// wildcards, the one with the longer literal suffix wins. Both host and
// every pattern are run through dockerconfig.NormalizeHost first, so the
// three Docker Hub aliases (docker.io, index.docker.io, registry-1.docker.io)
// match each other regardless of which spelling appears in config or in a
// parsed image reference.
func Resolve(host string, entries []Entry) (int, error) {
	normalizedHost := dockerconfig.NormalizeHost(host)

	for _, entry := range entries {
		if dockerconfig.NormalizeHost(entry.Pattern) == normalizedHost {
			return entry.Index, nil
		}
	}

	bestSuffixLen := -1
	bestIndex := -1
	tied := false

	for _, entry := range entries {
		suffix, isWildcard := wildcardSuffix(entry.Pattern)
		if !isWildcard {
			continue
		}
		if !matchesWildcard(normalizedHost, suffix) {
			continue
		}
		suffixLen := len(suffix)
		switch {
		case suffixLen > bestSuffixLen:
			bestSuffixLen = suffixLen
			bestIndex = entry.Index
			tied = false
		case suffixLen == bestSuffixLen:
			tied = true
		}
	}

	if tied {
		return -1, fmt.Errorf("%w: host %q matches multiple equally-specific patterns", ErrAmbiguous, host)
	}
	if bestIndex == -1 {
		return -1, ErrNoMatch
	}
	return bestIndex, nil
}

// wildcardSuffix splits a pattern of the form "*.suffix" into its suffix
// (normalized, including the leading dot) and reports whether the pattern
// is a wildcard at all.
func wildcardSuffix(pattern string) (suffix string, isWildcard bool) {
	normalized := dockerconfig.NormalizeHost(pattern)
	if !strings.HasPrefix(normalized, "*.") {
		return "", false
	}
	return normalized[1:], true // keep the leading '.'
}

// matchesWildcard reports whether host ends in suffix (a dot-prefixed
// literal, e.g. ".a.b") preceded by at least one non-empty label, so "*.a.b"
// matches "x.a.b" and "x.y.a.b" but not "a.b" itself.
func matchesWildcard(host, suffix string) bool {
	if !strings.HasSuffix(host, suffix) {
		return false
	}
	prefix := host[:len(host)-len(suffix)]
	return prefix != ""
}
