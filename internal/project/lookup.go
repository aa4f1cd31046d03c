package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/splax/branchenv/internal/neon"
)

// ErrProjectNotFound matches every NotFoundError.
var ErrProjectNotFound = errors.New("project not found")

// NotFoundError reports that no listed project carries the requested name.
type NotFoundError struct {
	Name    string
	Scanned int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("project %q not found among %d listed projects", e.Name, e.Scanned)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrProjectNotFound }

// API is the subset of the Neon client used for project discovery.
type API interface {
	ListProjects(ctx context.Context, limit int) ([]neon.Project, error)
	ListBranches(ctx context.Context, projectID string) ([]neon.Branch, error)
}

// Lookup resolves human readable project names and enumerates branches.
type Lookup struct {
	api   API
	limit int
}

// New returns a Lookup scanning the first neon.MaxProjectPage projects.
func New(api API) Lookup {
	return Lookup{api: api, limit: neon.MaxProjectPage}
}

// Resolve finds the project whose name matches exactly.
func (l Lookup) Resolve(ctx context.Context, name string) (neon.Project, error) {
	if strings.TrimSpace(name) == "" {
		return neon.Project{}, errors.New("project name required")
	}
	projects, err := l.api.ListProjects(ctx, l.limit)
	if err != nil {
		return neon.Project{}, fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		if p.Name == name {
			return p, nil
		}
	}
	return neon.Project{}, &NotFoundError{Name: name, Scanned: len(projects)}
}

// ListBranches enumerates the project's branches. An empty result is not an error.
func (l Lookup) ListBranches(ctx context.Context, project neon.Project) ([]neon.Branch, error) {
	branches, err := l.api.ListBranches(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list branches of %s: %w", project.ID, err)
	}
	for i := range branches {
		if branches[i].ProjectID == "" {
			branches[i].ProjectID = project.ID
		}
	}
	return branches, nil
}
