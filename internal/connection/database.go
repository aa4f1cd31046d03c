package connection

import (
	"context"
	"fmt"

	"github.com/samber/mo"
)

// DatabaseResolver picks the logical database for a branch.
type DatabaseResolver struct {
	api API
}

// NewDatabaseResolver returns a DatabaseResolver backed by api.
func NewDatabaseResolver(api API) DatabaseResolver {
	return DatabaseResolver{api: api}
}

// Resolve always lists the branch databases. An explicit name must be among
// them; otherwise the branch must own exactly one database.
func (r DatabaseResolver) Resolve(ctx context.Context, projectID, branchID string, wanted mo.Option[string]) (string, error) {
	databases, err := r.api.ListDatabases(ctx, projectID, branchID)
	if err != nil {
		return "", fmt.Errorf("list databases: %w", err)
	}
	names := make([]string, 0, len(databases))
	for _, db := range databases {
		names = append(names, db.Name)
	}

	if name, ok := wanted.Get(); ok {
		if outcome := selectNamed(names, name); outcome.Kind == Resolved {
			return outcome.Value, nil
		}
		return "", &DatabaseNotFoundError{Database: name, BranchID: branchID}
	}

	outcome := selectOne(names)
	switch outcome.Kind {
	case Resolved:
		return outcome.Value, nil
	case Ambiguous:
		return "", &AmbiguousDatabaseError{BranchID: branchID, Candidates: outcome.Candidates}
	default:
		return "", &NoDatabasesFoundError{BranchID: branchID}
	}
}
