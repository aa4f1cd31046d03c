package docker

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestEnsureImagePinsDigest(t *testing.T) {
	eng := newFakeEngine()
	eng.pullOutput = `{"status":"Pulling from hasura/graphql-engine","id":"v2.42.0"}
{"status":"Digest: sha256:abc"}
`
	eng.repoDigests = []string{"mirror.local/hasura/graphql-engine@sha256:abc", "hasura/graphql-engine@sha256:abc"}

	ref, err := newTestClient(eng).EnsureImage(context.Background(), "hasura/graphql-engine:v2.42.0")
	if err != nil {
		t.Fatalf("EnsureImage: %v", err)
	}
	if ref != "hasura/graphql-engine@sha256:abc" {
		t.Fatalf("unexpected pinned reference %s", ref)
	}
}

func TestEnsureImageFallsBackToTag(t *testing.T) {
	ref, err := newTestClient(newFakeEngine()).EnsureImage(context.Background(), "local/image:dev")
	if err != nil {
		t.Fatalf("EnsureImage: %v", err)
	}
	if ref != "local/image:dev" {
		t.Fatalf("expected tag reference, got %s", ref)
	}
}

func TestEnsureImageReportsStreamError(t *testing.T) {
	eng := newFakeEngine()
	eng.pullOutput = `{"errorDetail":{"message":"manifest unknown"}}`
	_, err := newTestClient(eng).EnsureImage(context.Background(), "hasura/graphql-engine:nope")
	if err == nil || !strings.Contains(err.Error(), "manifest unknown") {
		t.Fatalf("expected manifest error, got %v", err)
	}
}

func TestEnsureImagePullFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.pullErr = errors.New("daemon down")
	if _, err := newTestClient(eng).EnsureImage(context.Background(), "x:y"); err == nil {
		t.Fatalf("expected pull error")
	}
}

func TestRepositoryOf(t *testing.T) {
	cases := map[string]string{
		"hasura/graphql-engine:v2.42.0":    "hasura/graphql-engine",
		"hasura/graphql-engine@sha256:abc": "hasura/graphql-engine",
		"registry.local:5000/team/app":     "registry.local:5000/team/app",
		"registry.local:5000/team/app:1.0": "registry.local:5000/team/app",
		"redis":                            "redis",
	}
	for in, want := range cases {
		if got := repositoryOf(in); got != want {
			t.Fatalf("repositoryOf(%q) = %q, want %q", in, got, want)
		}
	}
}
