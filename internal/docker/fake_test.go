package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

type fakeContainer struct {
	id      string
	config  container.Config
	host    container.HostConfig
	running bool
}

type fakeEngine struct {
	containers  map[string]*fakeContainer
	pullOutput  string
	pullErr     error
	repoDigests []string
	created     int
	removed     []string
	started     []string
	nextID      int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{containers: map[string]*fakeContainer{}}
}

func (f *fakeEngine) Ping(ctx context.Context) (types.Ping, error) {
	return types.Ping{APIVersion: "1.45"}, nil
}

func (f *fakeEngine) ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return io.NopCloser(strings.NewReader(f.pullOutput)), nil
}

func (f *fakeEngine) ImageInspectWithRaw(ctx context.Context, ref string) (types.ImageInspect, []byte, error) {
	return types.ImageInspect{ID: "sha256:local", RepoDigests: f.repoDigests}, nil, nil
}

func (f *fakeEngine) lookup(idOrName string) (string, *fakeContainer) {
	for name, c := range f.containers {
		if name == idOrName || c.id == idOrName {
			return name, c
		}
	}
	return "", nil
}

func (f *fakeEngine) ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error) {
	name, c := f.lookup(id)
	if c == nil {
		return types.ContainerJSON{}, errdefs.NotFound(errors.New("no such container: " + id))
	}
	cfg := c.config
	host := c.host
	ports := nat.PortMap{}
	if c.running {
		ports = host.PortBindings
	}
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:         c.id,
			Name:       "/" + name,
			State:      &types.ContainerState{Running: c.running},
			HostConfig: &host,
		},
		Config: &cfg,
		NetworkSettings: &types.NetworkSettings{
			NetworkSettingsBase: types.NetworkSettingsBase{Ports: ports},
		},
	}, nil
}

func (f *fakeEngine) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, name string) (container.CreateResponse, error) {
	if _, exists := f.containers[name]; exists {
		return container.CreateResponse{}, errdefs.Conflict(fmt.Errorf("name %s already in use", name))
	}
	f.nextID++
	f.created++
	id := fmt.Sprintf("cid-%d", f.nextID)
	f.containers[name] = &fakeContainer{id: id, config: *config, host: *hostConfig}
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeEngine) ContainerStart(ctx context.Context, id string, options container.StartOptions) error {
	_, c := f.lookup(id)
	if c == nil {
		return errdefs.NotFound(errors.New("no such container"))
	}
	c.running = true
	f.started = append(f.started, id)
	return nil
}

func (f *fakeEngine) ContainerRemove(ctx context.Context, id string, options container.RemoveOptions) error {
	name, c := f.lookup(id)
	if c == nil {
		return errdefs.NotFound(errors.New("no such container"))
	}
	delete(f.containers, name)
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeEngine) Close() error { return nil }
