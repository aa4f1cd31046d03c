package neon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://console.neon.tech/api/v2"
	defaultTimeout   = 15 * time.Second
	maxErrorBodySize = 4096
)

// ErrUnauthorized indicates the API rejected the token.
var ErrUnauthorized = errors.New("neon: unauthorized")

// ErrNotFound indicates the API could not locate the referenced resource.
var ErrNotFound = errors.New("neon: not found")

// ErrInvalidArgument indicates the API rejected request parameters.
var ErrInvalidArgument = errors.New("neon: invalid argument")

// APIError represents an error response from the Neon API.
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("neon api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("neon api request failed (%d): %s", e.Status, e.Message)
}

// Unwrap exposes the status class sentinel, if any.
func (e *APIError) Unwrap() error { return e.kind }

// Client provides typed access to the Neon management API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithBaseURL points the client at a different API root.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(base); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// New constructs a Client authenticating with the provided API token.
func New(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("neon api token required")
	}
	cli := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(cli)
	}
	if _, err := url.Parse(cli.baseURL); err != nil {
		return nil, fmt.Errorf("invalid neon api url: %w", err)
	}
	return cli, nil
}

// ListProjects returns at most limit projects visible to the token.
func (c *Client) ListProjects(ctx context.Context, limit int) ([]Project, error) {
	if limit <= 0 || limit > MaxProjectPage {
		limit = MaxProjectPage
	}
	var resp projectsResponse
	if err := c.get(ctx, "/projects?limit="+strconv.Itoa(limit), &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// ListBranches returns every branch of the project.
func (c *Client) ListBranches(ctx context.Context, projectID string) ([]Branch, error) {
	var resp branchesResponse
	if err := c.get(ctx, projectPath(projectID)+"/branches", &resp); err != nil {
		return nil, err
	}
	return resp.Branches, nil
}

// ListEndpoints returns the endpoints attached to a branch.
func (c *Client) ListEndpoints(ctx context.Context, projectID, branchID string) ([]Endpoint, error) {
	var resp endpointsResponse
	if err := c.get(ctx, branchPath(projectID, branchID)+"/endpoints", &resp); err != nil {
		return nil, err
	}
	return resp.Endpoints, nil
}

// ListRoles returns the roles of a branch.
func (c *Client) ListRoles(ctx context.Context, projectID, branchID string) ([]Role, error) {
	var resp rolesResponse
	if err := c.get(ctx, branchPath(projectID, branchID)+"/roles", &resp); err != nil {
		return nil, err
	}
	return resp.Roles, nil
}

// ListDatabases returns the databases of a branch.
func (c *Client) ListDatabases(ctx context.Context, projectID, branchID string) ([]Database, error) {
	var resp databasesResponse
	if err := c.get(ctx, branchPath(projectID, branchID)+"/databases", &resp); err != nil {
		return nil, err
	}
	return resp.Databases, nil
}

// RolePassword reveals the current password of a role.
func (c *Client) RolePassword(ctx context.Context, projectID, branchID, role string) (string, error) {
	var resp passwordResponse
	path := branchPath(projectID, branchID) + "/roles/" + url.PathEscape(role) + "/reveal_password"
	if err := c.get(ctx, path, &resp); err != nil {
		return "", err
	}
	return resp.Password, nil
}

func projectPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID)
}

func branchPath(projectID, branchID string) string {
	return projectPath(projectID) + "/branches/" + url.PathEscape(branchID)
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	if c == nil {
		return errors.New("neon client is nil")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errorForStatus(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorForStatus(resp *http.Response) error {
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	apiErr := &APIError{Status: resp.StatusCode, Message: extractMessage(buf)}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		apiErr.kind = ErrUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		apiErr.kind = ErrInvalidArgument
	case http.StatusNotFound:
		apiErr.kind = ErrNotFound
	}
	return apiErr
}

func extractMessage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || strings.TrimSpace(payload.Message) == "" {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Message)
}
