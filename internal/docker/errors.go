package docker

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHostPort indicates the daemon did not publish the requested port.
	ErrNoHostPort = errors.New("docker: container has no published host port")
	// ErrNameConflict indicates a container with the wanted name exists but was not created by branchenv.
	ErrNameConflict = errors.New("docker: container name in use by an unmanaged container")
)

// NameConflictError names the foreign container occupying a managed name.
type NameConflictError struct {
	Name  string
	ID    string
	Image string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("container name %s is in use by unmanaged container %s (%s)", e.Name, e.ID, e.Image)
}

func (e *NameConflictError) Is(target error) bool { return target == ErrNameConflict }
