package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/splax/branchenv/internal/connection"
	"github.com/splax/branchenv/internal/docker"
	"github.com/splax/branchenv/internal/neon"
	"github.com/splax/branchenv/internal/ports"
)

const defaultConcurrency = 4

// ErrDuplicateBranch is recorded under a branch name shared by several branches.
// None of them is provisioned since their containers would share one logical name.
var ErrDuplicateBranch = errors.New("duplicate branch name")

// ProjectLookup resolves the project and enumerates its branches.
type ProjectLookup interface {
	Resolve(ctx context.Context, name string) (neon.Project, error)
	ListBranches(ctx context.Context, project neon.Project) ([]neon.Branch, error)
}

// ConnectionResolver derives the connection URI for a branch.
type ConnectionResolver interface {
	ConnectionString(ctx context.Context, project neon.Project, branch neon.Branch, opts connection.Options) (string, error)
}

// ContainerProvider converges containers on the local engine.
type ContainerProvider interface {
	EnsureImage(ctx context.Context, ref string) (string, error)
	ApplyContainer(ctx context.Context, spec docker.ContainerSpec) (docker.ContainerState, error)
}

// Output is the published result for a single branch.
type Output struct {
	Endpoint    string `json:"endpoint"`
	ContainerID string `json:"containerId"`
}

// Result summarises one Apply run.
type Result struct {
	RunID    string
	Project  neon.Project
	Image    string
	Outputs  map[string]Output
	Failures map[string]error
}

// BranchError attributes a failure to the branch that produced it.
type BranchError struct {
	Branch string
	Err    error
}

func (e *BranchError) Error() string { return fmt.Sprintf("branch %s: %v", e.Branch, e.Err) }

func (e *BranchError) Unwrap() error { return e.Err }

// Orchestrator converges one container per branch of a project.
type Orchestrator struct {
	lookup    ProjectLookup
	resolver  ConnectionResolver
	allocator ports.Allocator
	provider  ContainerProvider
	settings  Settings
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches run metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New constructs an Orchestrator.
func New(lookup ProjectLookup, resolver ConnectionResolver, allocator ports.Allocator, provider ContainerProvider, settings Settings, opts ...Option) *Orchestrator {
	if settings.Concurrency <= 0 {
		settings.Concurrency = defaultConcurrency
	}
	o := &Orchestrator{
		lookup:    lookup,
		resolver:  resolver,
		allocator: allocator,
		provider:  provider,
		settings:  settings,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Apply resolves the project, enumerates its branches and converges a container for each.
// Branch failures are collected in Result.Failures unless FailFast is set, in which case
// the first failure cancels outstanding branches and is returned.
func (o *Orchestrator) Apply(ctx context.Context) (Result, error) {
	start := o.now()
	result := Result{
		RunID:    uuid.NewString(),
		Outputs:  map[string]Output{},
		Failures: map[string]error{},
	}
	log := o.logger.With("run_id", result.RunID, "project", o.settings.ProjectName)
	defer func() { o.metrics.observeRun(o.now().Sub(start)) }()

	project, err := o.lookup.Resolve(ctx, o.settings.ProjectName)
	if err != nil {
		log.Error("project lookup failed", "error", err)
		return result, err
	}
	result.Project = project
	log = log.With("project_id", project.ID)

	branches, err := o.lookup.ListBranches(ctx, project)
	if err != nil {
		log.Error("list branches failed", "error", err)
		return result, fmt.Errorf("list branches: %w", err)
	}
	log.Info("branches enumerated", "count", len(branches))
	if len(branches) == 0 {
		return result, nil
	}

	image, err := o.provider.EnsureImage(ctx, o.settings.Image)
	if err != nil {
		log.Error("image pull failed", "image", o.settings.Image, "error", err)
		return result, fmt.Errorf("ensure image: %w", err)
	}
	result.Image = image

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		outcomes = make(map[string]mo.Result[Output], len(branches))
		firstErr error
	)
	record := func(name string, outcome mo.Result[Output]) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[name] = outcome
		if outcome.IsError() && firstErr == nil && !errors.Is(outcome.Error(), context.Canceled) {
			firstErr = &BranchError{Branch: name, Err: outcome.Error()}
			if o.settings.FailFast {
				cancel()
			}
		}
	}

	ids := make(map[string][]string, len(branches))
	for _, branch := range branches {
		ids[branch.Name] = append(ids[branch.Name], branch.ID)
	}
	wp := workerpool.New(o.settings.Concurrency)
	for _, branch := range branches {
		if dups := ids[branch.Name]; len(dups) > 1 {
			if dups[0] == branch.ID {
				log.Warn("skipping duplicate branch name", "branch", branch.Name, "branch_ids", dups)
				record(branch.Name, mo.Err[Output](fmt.Errorf("%w: %s used by %s", ErrDuplicateBranch, branch.Name, strings.Join(dups, ", "))))
			}
			continue
		}
		wp.Submit(func() {
			if err := runCtx.Err(); err != nil {
				record(branch.Name, mo.Err[Output](err))
				return
			}
			out, err := o.applyBranch(runCtx, log, project, branch, image)
			if err != nil {
				log.Error("branch failed", "branch", branch.Name, "branch_id", branch.ID, "error", err)
				record(branch.Name, mo.Err[Output](err))
				return
			}
			record(branch.Name, mo.Ok(out))
		})
	}
	wp.StopWait()

	for name, outcome := range outcomes {
		if outcome.IsError() {
			result.Failures[name] = outcome.Error()
			o.metrics.recordBranch("failed")
			continue
		}
		result.Outputs[name] = outcome.MustGet()
		o.metrics.recordBranch("ready")
	}
	log.Info("apply finished",
		"ready", len(result.Outputs),
		"failed", len(result.Failures),
		"duration_ms", o.now().Sub(start).Milliseconds(),
	)
	if o.settings.FailFast && firstErr != nil {
		return result, firstErr
	}
	return result, nil
}

func (o *Orchestrator) applyBranch(ctx context.Context, log *slog.Logger, project neon.Project, branch neon.Branch, image string) (Output, error) {
	name := o.settings.NamePrefix + branch.Name
	log = log.With("branch", branch.Name, "branch_id", branch.ID, "name", name)

	uri, err := o.resolver.ConnectionString(ctx, project, branch, o.settings.Connection)
	if err != nil {
		return Output{}, fmt.Errorf("resolve connection: %w", err)
	}

	port, err := o.allocator.Allocate(ctx, name, o.settings.Ports)
	if err != nil {
		return Output{}, fmt.Errorf("allocate port: %w", err)
	}

	state, err := o.provider.ApplyContainer(ctx, docker.ContainerSpec{
		Name:         name,
		Image:        image,
		InternalPort: o.settings.InternalPort,
		ExternalPort: port,
		Env: []string{
			envDatabaseURL + "=" + uri,
			envEnableConsole + "=true",
			envAdminSecret + "=" + o.settings.AdminSecret.Reveal(),
		},
		NetworkMode: networkMode,
		Labels: map[string]string{
			labelProject: project.ID,
			labelBranch:  branch.Name,
		},
		Start:              true,
		IgnoreImageChanges: o.settings.IgnoreImageChanges,
	})
	if err != nil {
		return Output{}, fmt.Errorf("apply container: %w", err)
	}

	action := "unchanged"
	switch {
	case state.Replaced:
		action = "replaced"
	case state.Created:
		action = "created"
	}
	o.metrics.recordContainer(action)
	log.Info("branch environment ready", "container_id", state.ID, "host_port", state.HostPort, "action", action)

	return Output{
		Endpoint:    Endpoint(o.settings.BaseURL, state.HostPort),
		ContainerID: state.ID,
	}, nil
}

// Endpoint joins the base URL with the observed host port.
func Endpoint(baseURL string, port int) string {
	return strings.TrimRight(baseURL, "/") + ":" + strconv.Itoa(port)
}
