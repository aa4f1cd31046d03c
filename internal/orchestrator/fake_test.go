package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/splax/branchenv/internal/docker"
	"github.com/splax/branchenv/internal/neon"
)

type fakeNeon struct {
	projects  []neon.Project
	branches  map[string][]neon.Branch
	endpoints map[string][]neon.Endpoint
	roles     map[string][]neon.Role
	databases map[string][]neon.Database
	passwords map[string]string
}

func (f *fakeNeon) ListProjects(ctx context.Context, limit int) ([]neon.Project, error) {
	return f.projects, nil
}

func (f *fakeNeon) ListBranches(ctx context.Context, projectID string) ([]neon.Branch, error) {
	return append([]neon.Branch(nil), f.branches[projectID]...), nil
}

func (f *fakeNeon) ListEndpoints(ctx context.Context, projectID, branchID string) ([]neon.Endpoint, error) {
	return f.endpoints[branchID], nil
}

func (f *fakeNeon) ListRoles(ctx context.Context, projectID, branchID string) ([]neon.Role, error) {
	return f.roles[branchID], nil
}

func (f *fakeNeon) ListDatabases(ctx context.Context, projectID, branchID string) ([]neon.Database, error) {
	return f.databases[branchID], nil
}

func (f *fakeNeon) RolePassword(ctx context.Context, projectID, branchID, role string) (string, error) {
	pw, ok := f.passwords[branchID+"/"+role]
	if !ok {
		return "", neon.ErrNotFound
	}
	return pw, nil
}

// addBranch registers a healthy branch with one read-write endpoint, role app and database appdb.
func (f *fakeNeon) addBranch(projectID, id, name string) {
	if f.branches == nil {
		f.branches = map[string][]neon.Branch{}
		f.endpoints = map[string][]neon.Endpoint{}
		f.roles = map[string][]neon.Role{}
		f.databases = map[string][]neon.Database{}
		f.passwords = map[string]string{}
	}
	f.branches[projectID] = append(f.branches[projectID], neon.Branch{ID: id, Name: name})
	f.endpoints[id] = []neon.Endpoint{{ID: "ep-" + name, Host: "ep-" + name + ".neon.tech", Type: neon.EndpointReadWrite, BranchID: id}}
	f.roles[id] = []neon.Role{{Name: "app", BranchID: id}}
	f.databases[id] = []neon.Database{{Name: "appdb", OwnerName: "app", BranchID: id}}
	f.passwords[id+"/app"] = "pw-" + name
}

type fakeProvider struct {
	mu         sync.Mutex
	containers map[string]docker.ContainerSpec
	ids        map[string]string
	pulls      int
	creates    int
	fail       map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{containers: map[string]docker.ContainerSpec{}, ids: map[string]string{}}
}

func (p *fakeProvider) EnsureImage(ctx context.Context, ref string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pulls++
	return ref + "@sha256:abc", nil
}

func (p *fakeProvider) ApplyContainer(ctx context.Context, spec docker.ContainerSpec) (docker.ContainerState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[spec.Name]; err != nil {
		return docker.ContainerState{}, err
	}
	state := docker.ContainerState{Name: spec.Name, Image: spec.Image, HostPort: spec.ExternalPort}
	if _, ok := p.containers[spec.Name]; !ok {
		p.creates++
		p.ids[spec.Name] = fmt.Sprintf("c%02d", p.creates)
		state.Created = true
	}
	p.containers[spec.Name] = spec
	state.ID = p.ids[spec.Name]
	return state, nil
}

func (p *fakeProvider) spec(name string) (docker.ContainerSpec, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.containers[name]
	return s, ok
}
