package connection

import (
	"context"

	"github.com/splax/branchenv/internal/neon"
)

// API is the subset of the Neon client needed to resolve a branch connection.
type API interface {
	ListEndpoints(ctx context.Context, projectID, branchID string) ([]neon.Endpoint, error)
	ListRoles(ctx context.Context, projectID, branchID string) ([]neon.Role, error)
	ListDatabases(ctx context.Context, projectID, branchID string) ([]neon.Database, error)
	RolePassword(ctx context.Context, projectID, branchID, role string) (string, error)
}
