package connection

import (
	"context"
	"fmt"

	"github.com/samber/mo"
)

// RoleResolver picks the authentication role for a branch.
type RoleResolver struct {
	api API
}

// NewRoleResolver returns a RoleResolver backed by api.
func NewRoleResolver(api API) RoleResolver {
	return RoleResolver{api: api}
}

// Resolve trusts an explicit role name without checking it exists; the
// password lookup later surfaces a missing role. Otherwise the branch must own
// exactly one role.
func (r RoleResolver) Resolve(ctx context.Context, projectID, branchID string, wanted mo.Option[string]) (string, error) {
	if name, ok := wanted.Get(); ok {
		return name, nil
	}
	roles, err := r.api.ListRoles(ctx, projectID, branchID)
	if err != nil {
		return "", fmt.Errorf("list roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	outcome := selectOne(names)
	switch outcome.Kind {
	case Resolved:
		return outcome.Value, nil
	case Ambiguous:
		return "", &AmbiguousRoleError{BranchID: branchID, Candidates: outcome.Candidates}
	default:
		return "", &NoRolesFoundError{BranchID: branchID}
	}
}
