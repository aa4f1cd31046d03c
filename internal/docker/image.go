package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/image"
)

type pullMessage struct {
	Status      string          `json:"status"`
	ID          string          `json:"id"`
	Error       string          `json:"error"`
	ErrorDetail pullErrorDetail `json:"errorDetail"`
}

type pullErrorDetail struct {
	Message string `json:"message"`
}

func (m pullMessage) errorMessage() string {
	if strings.TrimSpace(m.Error) != "" {
		return strings.TrimSpace(m.Error)
	}
	return strings.TrimSpace(m.ErrorDetail.Message)
}

// EnsureImage pulls ref and returns an immutable reference to it: the repo
// digest when the daemon knows one, otherwise ref unchanged.
func (c *Client) EnsureImage(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("image reference cannot be empty")
	}
	stream, err := c.inner.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return "", fmt.Errorf("docker image pull: %w", err)
	}
	defer stream.Close()

	decoder := json.NewDecoder(stream)
	for {
		var msg pullMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("decode pull output: %w", err)
		}
		if errMsg := msg.errorMessage(); errMsg != "" {
			return "", fmt.Errorf("docker image pull: %s", errMsg)
		}
	}

	inspect, _, err := c.inner.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("docker image inspect: %w", err)
	}
	return pinnedReference(ref, inspect.RepoDigests), nil
}

// pinnedReference prefers the digest belonging to ref's repository.
func pinnedReference(ref string, digests []string) string {
	repo := repositoryOf(ref)
	for _, d := range digests {
		if repositoryOf(d) == repo {
			return d
		}
	}
	if len(digests) > 0 {
		return digests[0]
	}
	return ref
}

func repositoryOf(ref string) string {
	if i := strings.Index(ref, "@"); i >= 0 {
		ref = ref[:i]
	}
	slash := strings.LastIndex(ref, "/")
	if colon := strings.LastIndex(ref, ":"); colon > slash {
		ref = ref[:colon]
	}
	return ref
}
