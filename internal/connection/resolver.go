package connection

import (
	"context"

	"github.com/samber/mo"

	"github.com/splax/branchenv/internal/neon"
)

// Options tunes how a branch connection string is resolved.
type Options struct {
	Database     mo.Option[string]
	Role         mo.Option[string]
	EndpointType mo.Option[neon.EndpointType]
	Pooled       bool
	SSL          SSLMode
}

// Details is everything resolved for a branch except the password.
type Details struct {
	Endpoint neon.Endpoint
	Role     string
	Database string
}

// Resolver turns a branch into a connection string.
type Resolver struct {
	api       API
	endpoints EndpointResolver
	roles     RoleResolver
	databases DatabaseResolver
	builder   Builder
}

// NewResolver wires the three resolvers and the builder around api.
func NewResolver(api API, builder Builder) Resolver {
	return Resolver{
		api:       api,
		endpoints: NewEndpointResolver(api),
		roles:     NewRoleResolver(api),
		databases: NewDatabaseResolver(api),
		builder:   builder,
	}
}

// Details resolves endpoint, role and database in that order, stopping at the first failure.
func (r Resolver) Details(ctx context.Context, project neon.Project, branch neon.Branch, opts Options) (Details, error) {
	endpoint, err := r.endpoints.Resolve(ctx, project.ID, branch.ID, opts.EndpointType)
	if err != nil {
		return Details{}, err
	}
	role, err := r.roles.Resolve(ctx, project.ID, branch.ID, opts.Role)
	if err != nil {
		return Details{}, err
	}
	database, err := r.databases.Resolve(ctx, project.ID, branch.ID, opts.Database)
	if err != nil {
		return Details{}, err
	}
	return Details{Endpoint: endpoint, Role: role, Database: database}, nil
}

// ConnectionString resolves the branch and builds its URI. The password is
// fetched against the endpoint's owning branch; lookup errors are returned as is.
func (r Resolver) ConnectionString(ctx context.Context, project neon.Project, branch neon.Branch, opts Options) (string, error) {
	details, err := r.Details(ctx, project, branch, opts)
	if err != nil {
		return "", err
	}
	owner := details.Endpoint.BranchID
	if owner == "" {
		owner = branch.ID
	}
	password, err := r.api.RolePassword(ctx, project.ID, owner, details.Role)
	if err != nil {
		return "", err
	}
	return r.builder.Build(details.Endpoint.Host, details.Endpoint.ID, details.Role, password, details.Database, opts.Pooled, opts.SSL)
}
