package docker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

func testSpec() ContainerSpec {
	return ContainerSpec{
		Name:               "service-main",
		Image:              "hasura/graphql-engine@sha256:aaa",
		InternalPort:       8080,
		ExternalPort:       40001,
		Env:                []string{"HASURA_GRAPHQL_DATABASE_URL=postgresql://a", "HASURA_GRAPHQL_ENABLE_CONSOLE=true"},
		NetworkMode:        "bridge",
		Start:              true,
		IgnoreImageChanges: true,
	}
}

func newTestClient(e *fakeEngine) *Client {
	c := newWithEngine(e)
	c.pollInterval = time.Millisecond
	return c
}

func TestApplyContainerCreatesAndStarts(t *testing.T) {
	eng := newFakeEngine()
	cli := newTestClient(eng)

	state, err := cli.ApplyContainer(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("ApplyContainer: %v", err)
	}
	if !state.Created || state.Replaced {
		t.Fatalf("expected fresh creation, got %+v", state)
	}
	if state.ID != "cid-1" || state.HostPort != 40001 {
		t.Fatalf("unexpected state %+v", state)
	}
	created := eng.containers["service-main"]
	if created == nil || !created.running {
		t.Fatalf("expected running container")
	}
	if created.config.Labels[LabelManaged] != "true" || created.config.Labels[LabelName] != "service-main" {
		t.Fatalf("missing management labels %v", created.config.Labels)
	}
	bindings := created.host.PortBindings[nat.Port("8080/tcp")]
	if len(bindings) != 1 || bindings[0].HostPort != "40001" {
		t.Fatalf("unexpected port bindings %v", created.host.PortBindings)
	}
	if string(created.host.NetworkMode) != "bridge" {
		t.Fatalf("unexpected network mode %s", created.host.NetworkMode)
	}
}

func TestApplyContainerIsIdempotent(t *testing.T) {
	eng := newFakeEngine()
	cli := newTestClient(eng)
	spec := testSpec()

	first, err := cli.ApplyContainer(context.Background(), spec)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	spec.Env = []string{spec.Env[1], spec.Env[0]}
	second, err := cli.ApplyContainer(context.Background(), spec)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if eng.created != 1 {
		t.Fatalf("expected a single create, got %d", eng.created)
	}
	if second.Created || second.Replaced || second.ID != first.ID || second.HostPort != first.HostPort {
		t.Fatalf("expected reuse, got %+v then %+v", first, second)
	}
}

func TestApplyContainerIgnoresImageDrift(t *testing.T) {
	eng := newFakeEngine()
	cli := newTestClient(eng)
	spec := testSpec()
	if _, err := cli.ApplyContainer(context.Background(), spec); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	spec.Image = "hasura/graphql-engine@sha256:bbb"
	state, err := cli.ApplyContainer(context.Background(), spec)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if state.Replaced || eng.created != 1 {
		t.Fatalf("image drift must not replace, state %+v created %d", state, eng.created)
	}
	if state.Image != "hasura/graphql-engine@sha256:aaa" {
		t.Fatalf("expected running image reported, got %s", state.Image)
	}

	spec.IgnoreImageChanges = false
	state, err = cli.ApplyContainer(context.Background(), spec)
	if err != nil {
		t.Fatalf("third apply: %v", err)
	}
	if !state.Replaced || eng.created != 2 {
		t.Fatalf("expected replacement once drift is tracked, state %+v created %d", state, eng.created)
	}
}

func TestApplyContainerReplacesOnEnvChange(t *testing.T) {
	eng := newFakeEngine()
	cli := newTestClient(eng)
	spec := testSpec()
	if _, err := cli.ApplyContainer(context.Background(), spec); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	spec.Env = append(spec.Env, "HASURA_GRAPHQL_ADMIN_SECRET=rotated")
	state, err := cli.ApplyContainer(context.Background(), spec)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !state.Replaced || state.ID != "cid-2" {
		t.Fatalf("expected replacement, got %+v", state)
	}
	if len(eng.removed) != 1 || eng.removed[0] != "service-main" {
		t.Fatalf("expected old container removed, got %v", eng.removed)
	}
}

func TestApplyContainerRestartsStoppedMatch(t *testing.T) {
	eng := newFakeEngine()
	cli := newTestClient(eng)
	spec := testSpec()
	if _, err := cli.ApplyContainer(context.Background(), spec); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	eng.containers["service-main"].running = false

	state, err := cli.ApplyContainer(context.Background(), spec)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !eng.containers["service-main"].running {
		t.Fatalf("expected container restarted")
	}
	if state.HostPort != 40001 {
		t.Fatalf("unexpected host port %d", state.HostPort)
	}
}

func TestApplyContainerWithoutPublishedPort(t *testing.T) {
	eng := newFakeEngine()
	cli := newTestClient(eng)
	spec := testSpec()
	spec.ExternalPort = 0

	_, err := cli.ApplyContainer(context.Background(), spec)
	if !errors.Is(err, ErrNoHostPort) {
		t.Fatalf("expected ErrNoHostPort, got %v", err)
	}
}

func TestApplyContainerValidates(t *testing.T) {
	cli := newTestClient(newFakeEngine())
	spec := testSpec()
	spec.Name = " "
	if _, err := cli.ApplyContainer(context.Background(), spec); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRemoveContainerMissingIsNoop(t *testing.T) {
	cli := newTestClient(newFakeEngine())
	if err := cli.RemoveContainer(context.Background(), "ghost"); err != nil {
		t.Fatalf("RemoveContainer: %v", err)
	}
}

func TestApplyContainerRefusesUnmanagedSameName(t *testing.T) {
	eng := newFakeEngine()
	eng.containers["service-main"] = &fakeContainer{
		id:      "foreign-1",
		config:  container.Config{Image: "postgres:16"},
		running: true,
	}
	cli := newTestClient(eng)

	_, err := cli.ApplyContainer(context.Background(), testSpec())
	if !errors.Is(err, ErrNameConflict) {
		t.Fatalf("expected name conflict, got %v", err)
	}
	var conflict *NameConflictError
	if !errors.As(err, &conflict) || conflict.ID != "foreign-1" || conflict.Image != "postgres:16" {
		t.Fatalf("expected conflict details, got %v", err)
	}
	if len(eng.removed) != 0 || eng.created != 0 {
		t.Fatalf("unmanaged container must be left alone, removed=%v created=%d", eng.removed, eng.created)
	}
	if c := eng.containers["service-main"]; c == nil || c.id != "foreign-1" || !c.running {
		t.Fatalf("unmanaged container changed: %+v", c)
	}
}

func TestApplyContainerFingerprintIsSalted(t *testing.T) {
	eng := newFakeEngine()
	cli := newTestClient(eng)
	spec := testSpec()
	spec.Env = append(spec.Env, "HASURA_GRAPHQL_ADMIN_SECRET=s3cret")
	if _, err := cli.ApplyContainer(context.Background(), spec); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	spec.Name = "service-dev"
	if _, err := cli.ApplyContainer(context.Background(), spec); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	mainLabels := eng.containers["service-main"].config.Labels
	dev := eng.containers["service-dev"].config.Labels
	if mainLabels[labelFingerprintSalt] == "" || mainLabels[labelFingerprintSalt] == dev[labelFingerprintSalt] {
		t.Fatalf("expected distinct salts, got %q and %q", mainLabels[labelFingerprintSalt], dev[labelFingerprintSalt])
	}
	if mainLabels[labelFingerprint] == dev[labelFingerprint] {
		t.Fatalf("identical desired state must not produce identical labels")
	}

	env := append([]string(nil), spec.Env...)
	sort.Strings(env)
	h := sha256.New()
	for _, e := range env {
		h.Write([]byte("env=" + e + "\n"))
	}
	unsalted := hex.EncodeToString(h.Sum(nil))
	for key, value := range mainLabels {
		if value == unsalted || strings.Contains(value, "s3cret") {
			t.Fatalf("label %s exposes env content", key)
		}
	}
}

func TestApplyContainerReplacesManagedWithoutSalt(t *testing.T) {
	eng := newFakeEngine()
	eng.containers["service-main"] = &fakeContainer{
		id: "old-1",
		config: container.Config{
			Image:  "hasura/graphql-engine@sha256:aaa",
			Labels: map[string]string{LabelManaged: "true", labelFingerprint: "legacy"},
		},
		running: true,
	}
	cli := newTestClient(eng)

	state, err := cli.ApplyContainer(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("ApplyContainer: %v", err)
	}
	if !state.Replaced || len(eng.removed) != 1 {
		t.Fatalf("expected managed container replaced, state %+v removed %v", state, eng.removed)
	}
}
