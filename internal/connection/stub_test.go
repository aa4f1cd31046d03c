package connection

import (
	"context"

	"github.com/splax/branchenv/internal/neon"
)

type stubAPI struct {
	endpoints map[string][]neon.Endpoint
	roles     map[string][]neon.Role
	databases map[string][]neon.Database
	passwords map[string]string
	pwErr     error
	calls     []string
}

func (s *stubAPI) ListEndpoints(ctx context.Context, projectID, branchID string) ([]neon.Endpoint, error) {
	s.calls = append(s.calls, "endpoints:"+branchID)
	return s.endpoints[branchID], nil
}

func (s *stubAPI) ListRoles(ctx context.Context, projectID, branchID string) ([]neon.Role, error) {
	s.calls = append(s.calls, "roles:"+branchID)
	return s.roles[branchID], nil
}

func (s *stubAPI) ListDatabases(ctx context.Context, projectID, branchID string) ([]neon.Database, error) {
	s.calls = append(s.calls, "databases:"+branchID)
	return s.databases[branchID], nil
}

func (s *stubAPI) RolePassword(ctx context.Context, projectID, branchID, role string) (string, error) {
	s.calls = append(s.calls, "password:"+branchID+"/"+role)
	if s.pwErr != nil {
		return "", s.pwErr
	}
	pw, ok := s.passwords[branchID+"/"+role]
	if !ok {
		return "", neon.ErrNotFound
	}
	return pw, nil
}
