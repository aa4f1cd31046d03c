package connection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/splax/branchenv/internal/neon"
)

var (
	ErrNoEndpointFound   = errors.New("no endpoint found")
	ErrNoRolesFound      = errors.New("no roles found")
	ErrAmbiguousRole     = errors.New("ambiguous role")
	ErrNoDatabasesFound  = errors.New("no databases found")
	ErrAmbiguousDatabase = errors.New("ambiguous database")
	ErrDatabaseNotFound  = errors.New("database not found")
)

// NoEndpointFoundError reports a branch without a usable endpoint. Type is
// empty when no particular type was requested.
type NoEndpointFoundError struct {
	BranchID string
	Type     neon.EndpointType
}

func (e *NoEndpointFoundError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("no endpoint found for the branch: %s", e.BranchID)
	}
	return fmt.Sprintf("no %s endpoint found for the branch: %s", e.Type, e.BranchID)
}

func (e *NoEndpointFoundError) Is(target error) bool { return target == ErrNoEndpointFound }

// NoRolesFoundError reports a branch without roles.
type NoRolesFoundError struct {
	BranchID string
}

func (e *NoRolesFoundError) Error() string {
	return fmt.Sprintf("no roles found for the branch: %s", e.BranchID)
}

func (e *NoRolesFoundError) Is(target error) bool { return target == ErrNoRolesFound }

// AmbiguousRoleError lists every role so the caller can pick one explicitly.
type AmbiguousRoleError struct {
	BranchID   string
	Candidates []string
}

func (e *AmbiguousRoleError) Error() string {
	return fmt.Sprintf("multiple roles found for the branch %s, set a role name explicitly: %s",
		e.BranchID, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousRoleError) Is(target error) bool { return target == ErrAmbiguousRole }

// NoDatabasesFoundError reports a branch without databases.
type NoDatabasesFoundError struct {
	BranchID string
}

func (e *NoDatabasesFoundError) Error() string {
	return fmt.Sprintf("no databases found for the branch: %s", e.BranchID)
}

func (e *NoDatabasesFoundError) Is(target error) bool { return target == ErrNoDatabasesFound }

// AmbiguousDatabaseError lists every database so the caller can pick one explicitly.
type AmbiguousDatabaseError struct {
	BranchID   string
	Candidates []string
}

func (e *AmbiguousDatabaseError) Error() string {
	return fmt.Sprintf("multiple databases found for the branch %s, set a database name explicitly: %s",
		e.BranchID, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousDatabaseError) Is(target error) bool { return target == ErrAmbiguousDatabase }

// DatabaseNotFoundError reports an explicitly requested database missing from the branch.
type DatabaseNotFoundError struct {
	Database string
	BranchID string
}

func (e *DatabaseNotFoundError) Error() string {
	return fmt.Sprintf("database not found: %s (branch %s)", e.Database, e.BranchID)
}

func (e *DatabaseNotFoundError) Is(target error) bool { return target == ErrDatabaseNotFound }
