package imageref

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		name  string
		image string
		want  Reference
	}{
		{
			name:  "bare name defaults host, repo prefix, and tag",
			image: "nginx",
			want:  Reference{Host: "docker.io", Repository: "library/nginx", Tag: "latest"},
		},
		{
			name:  "bare name with explicit tag",
			image: "nginx:1.27",
			want:  Reference{Host: "docker.io", Repository: "library/nginx", Tag: "1.27"},
		},
		{
			name:  "docker hub namespaced repo has no library prefix",
			image: "library/nginx:latest",
			want:  Reference{Host: "docker.io", Repository: "library/nginx", Tag: "latest"},
		},
		{
			name:  "org/repo without explicit host defaults to docker hub",
			image: "grafana/grafana:10.0.0",
			want:  Reference{Host: "docker.io", Repository: "grafana/grafana", Tag: "10.0.0"},
		},
		{
			name:  "explicit host with dot",
			image: "ghcr.io/org/app:main",
			want:  Reference{Host: "ghcr.io", Repository: "org/app", Tag: "main"},
		},
		{
			name:  "explicit host with port",
			image: "registry.internal:5000/team/app:v2",
			want:  Reference{Host: "registry.internal:5000", Repository: "team/app", Tag: "v2"},
		},
		{
			name:  "localhost is treated as a host",
			image: "localhost/app:dev",
			want:  Reference{Host: "localhost", Repository: "app", Tag: "dev"},
		},
		{
			name:  "digest suffix populates digest and defaults tag",
			image: "ghcr.io/org/app@sha256:abcd",
			want:  Reference{Host: "ghcr.io", Repository: "org/app", Tag: "latest", Digest: "sha256:abcd"},
		},
		{
			name:  "tag and digest both present",
			image: "ghcr.io/org/app:main@sha256:abcd",
			want:  Reference{Host: "ghcr.io", Repository: "org/app", Tag: "main", Digest: "sha256:abcd"},
		},
		{
			name:  "host is case-folded",
			image: "GHCR.io/org/app:main",
			want:  Reference{Host: "ghcr.io", Repository: "org/app", Tag: "main"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.image)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tc.image, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("Parse(%q) = %+v, want %+v", tc.image, got, tc.want)
			}
		})
	}
}

func TestParseRejectsEmptyRepository(t *testing.T) {
	if _, err := Parse("ghcr.io/"); err == nil {
		t.Fatalf("expected error for missing repository")
	}
}

func TestParseRejectsEmptyInput(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatalf("expected error for empty image string")
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	images := []string{
		"nginx",
		"nginx:1.27",
		"ghcr.io/org/app:main",
		"registry.internal:5000/team/app:v2",
		"ghcr.io/org/app:main@sha256:abcd",
	}
	for _, image := range images {
		ref, err := Parse(image)
		if err != nil {
			t.Fatalf("Parse(%q): %v", image, err)
		}
		roundTripped, err := Parse(ref.String())
		if err != nil {
			t.Fatalf("Parse(String(Parse(%q))): %v", image, err)
		}
		if !ref.Equal(roundTripped) {
			t.Fatalf("round trip mismatch for %q: %+v != %+v", image, ref, roundTripped)
		}
	}
}

func TestEqualAllFieldsMatter(t *testing.T) {
	base := Reference{Host: "ghcr.io", Repository: "org/app", Tag: "main", Digest: "sha256:aaaa"}
	variants := []Reference{
		{Host: "docker.io", Repository: "org/app", Tag: "main", Digest: "sha256:aaaa"},
		{Host: "ghcr.io", Repository: "org/other", Tag: "main", Digest: "sha256:aaaa"},
		{Host: "ghcr.io", Repository: "org/app", Tag: "dev", Digest: "sha256:aaaa"},
		{Host: "ghcr.io", Repository: "org/app", Tag: "main", Digest: "sha256:bbbb"},
	}
	for _, v := range variants {
		if base.Equal(v) {
			t.Fatalf("expected %+v to differ from %+v", base, v)
		}
	}
}
