package docker

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	LabelManaged         = "branchenv.managed"
	LabelName            = "branchenv.name"
	labelFingerprint     = "branchenv.fingerprint"
	labelFingerprintSalt = "branchenv.fingerprint-salt"
)

// ContainerSpec is the desired state of one container, keyed by Name.
type ContainerSpec struct {
	Name         string
	Image        string
	InternalPort int
	ExternalPort int
	Env          []string
	NetworkMode  string
	Labels       map[string]string
	Start        bool
	// IgnoreImageChanges keeps an existing container whose only difference is the image.
	IgnoreImageChanges bool
}

// ContainerState is what the daemon reports after an apply.
type ContainerState struct {
	ID       string
	Name     string
	Image    string
	HostPort int
	Created  bool
	Replaced bool
}

func (s ContainerSpec) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	if strings.TrimSpace(s.Image) == "" {
		return fmt.Errorf("image name cannot be empty")
	}
	if s.InternalPort <= 0 || s.InternalPort > 65535 {
		return fmt.Errorf("invalid internal port %d", s.InternalPort)
	}
	if s.ExternalPort < 0 || s.ExternalPort > 65535 {
		return fmt.Errorf("invalid external port %d", s.ExternalPort)
	}
	return nil
}

func (s ContainerSpec) port() nat.Port {
	return nat.Port(fmt.Sprintf("%d/tcp", s.InternalPort))
}

// fingerprint is an HMAC keyed by a per-container salt over every field that
// forces a replacement when it changes. Env carries credentials, so the label
// must not be a plain digest of it.
func (s ContainerSpec) fingerprint(salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	env := append([]string(nil), s.Env...)
	sort.Strings(env)
	for _, e := range env {
		fmt.Fprintf(h, "env=%s\n", e)
	}
	fmt.Fprintf(h, "port=%d:%d\n", s.ExternalPort, s.InternalPort)
	fmt.Fprintf(h, "network=%s\n", s.NetworkMode)
	if !s.IgnoreImageChanges {
		fmt.Fprintf(h, "image=%s\n", s.Image)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// matches reports whether labels record the fingerprint of spec.
func (s ContainerSpec) matches(labels map[string]string) bool {
	salt, recorded := labels[labelFingerprintSalt], labels[labelFingerprint]
	if salt == "" || recorded == "" {
		return false
	}
	return hmac.Equal([]byte(recorded), []byte(s.fingerprint(salt)))
}

// ApplyContainer creates the container named by spec, keeps a matching one, or
// replaces one whose desired state drifted. A same-name container without the
// managed label is never touched and yields a *NameConflictError.
func (c *Client) ApplyContainer(ctx context.Context, spec ContainerSpec) (ContainerState, error) {
	if err := spec.validate(); err != nil {
		return ContainerState{}, err
	}

	existing, err := c.inner.ContainerInspect(ctx, spec.Name)
	switch {
	case err == nil:
		if !managed(existing) {
			conflict := &NameConflictError{Name: spec.Name}
			if existing.ContainerJSONBase != nil {
				conflict.ID = existing.ID
			}
			if existing.Config != nil {
				conflict.Image = existing.Config.Image
			}
			return ContainerState{}, conflict
		}
		if spec.matches(existing.Config.Labels) {
			return c.reuse(ctx, spec, existing)
		}
		if err := c.RemoveContainer(ctx, spec.Name); err != nil {
			return ContainerState{}, err
		}
		state, err := c.create(ctx, spec)
		state.Replaced = err == nil
		return state, err
	case client.IsErrNotFound(err):
		return c.create(ctx, spec)
	default:
		return ContainerState{}, fmt.Errorf("container inspect: %w", err)
	}
}

func managed(inspect types.ContainerJSON) bool {
	return inspect.ContainerJSONBase != nil && inspect.Config != nil && inspect.Config.Labels[LabelManaged] == "true"
}

// RemoveContainer removes an existing container if it exists.
func (c *Client) RemoveContainer(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	if err := c.inner.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

func (c *Client) reuse(ctx context.Context, spec ContainerSpec, existing types.ContainerJSON) (ContainerState, error) {
	if spec.Start && (existing.State == nil || !existing.State.Running) {
		if err := c.inner.ContainerStart(ctx, existing.ID, container.StartOptions{}); err != nil {
			return ContainerState{}, fmt.Errorf("container start: %w", err)
		}
		inspect, err := c.waitForHostPort(ctx, existing.ID)
		if err != nil {
			return ContainerState{}, err
		}
		existing = inspect
	}
	return c.stateFrom(spec, existing)
}

func (c *Client) create(ctx context.Context, spec ContainerSpec) (ContainerState, error) {
	salt := rand.Text()
	labels := map[string]string{}
	for k, v := range spec.Labels {
		labels[k] = v
	}
	labels[LabelManaged] = "true"
	labels[LabelName] = spec.Name
	labels[labelFingerprintSalt] = salt
	labels[labelFingerprint] = spec.fingerprint(salt)

	port := spec.port()
	binding := nat.PortBinding{}
	if spec.ExternalPort > 0 {
		binding.HostPort = strconv.Itoa(spec.ExternalPort)
	}
	config := &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		Labels:       labels,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{port: []nat.PortBinding{binding}},
		NetworkMode:  container.NetworkMode(spec.NetworkMode),
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}

	r, err := c.inner.ContainerCreate(ctx, config, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return ContainerState{}, fmt.Errorf("container create: %w", err)
	}

	var inspect types.ContainerJSON
	if spec.Start {
		if err := c.inner.ContainerStart(ctx, r.ID, container.StartOptions{}); err != nil {
			return ContainerState{}, fmt.Errorf("container start: %w", err)
		}
		inspect, err = c.waitForHostPort(ctx, r.ID)
	} else {
		inspect, err = c.inner.ContainerInspect(ctx, r.ID)
	}
	if err != nil {
		return ContainerState{}, fmt.Errorf("container inspect: %w", err)
	}
	state, err := c.stateFrom(spec, inspect)
	state.Created = err == nil
	return state, err
}

func (c *Client) waitForHostPort(ctx context.Context, id string) (types.ContainerJSON, error) {
	var inspect types.ContainerJSON
	var err error
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		inspect, err = c.inner.ContainerInspect(ctx, id)
		if err != nil {
			return types.ContainerJSON{}, fmt.Errorf("container inspect: %w", err)
		}
		if hasHostPort(inspect.NetworkSettings) || attempt == c.pollAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return types.ContainerJSON{}, fmt.Errorf("wait for host port: %w", ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
	return inspect, nil
}

func (c *Client) stateFrom(spec ContainerSpec, inspect types.ContainerJSON) (ContainerState, error) {
	state := ContainerState{Name: spec.Name, Image: spec.Image}
	if inspect.ContainerJSONBase != nil {
		state.ID = inspect.ID
	}
	if inspect.Config != nil && inspect.Config.Image != "" {
		state.Image = inspect.Config.Image
	}
	port, ok := observedHostPort(inspect, spec.port())
	if !ok {
		return state, fmt.Errorf("%w: %s %s", ErrNoHostPort, spec.Name, spec.port())
	}
	state.HostPort = port
	return state, nil
}

func observedHostPort(inspect types.ContainerJSON, port nat.Port) (int, bool) {
	var candidates []nat.PortBinding
	if inspect.NetworkSettings != nil {
		candidates = append(candidates, inspect.NetworkSettings.Ports[port]...)
	}
	if inspect.ContainerJSONBase != nil && inspect.HostConfig != nil {
		candidates = append(candidates, inspect.HostConfig.PortBindings[port]...)
	}
	for _, binding := range candidates {
		if p, err := strconv.Atoi(strings.TrimSpace(binding.HostPort)); err == nil && p > 0 {
			return p, true
		}
	}
	return 0, false
}

func hasHostPort(settings *types.NetworkSettings) bool {
	if settings == nil || settings.Ports == nil {
		return false
	}
	for _, bindings := range settings.Ports {
		for _, binding := range bindings {
			if strings.TrimSpace(binding.HostPort) != "" {
				return true
			}
		}
	}
	return false
}
