package neon

// EndpointType distinguishes read-write and read-only compute endpoints.
type EndpointType string

const (
	EndpointReadWrite EndpointType = "read_write"
	EndpointReadOnly  EndpointType = "read_only"
)

// MaxProjectPage is the largest page the projects listing accepts.
const MaxProjectPage = 400

// Project is a Neon project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Branch is an isolated copy of a project's data.
type Branch struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
}

// Endpoint is a compute frontend attached to a branch.
type Endpoint struct {
	ID       string       `json:"id"`
	Host     string       `json:"host"`
	Type     EndpointType `json:"type"`
	BranchID string       `json:"branch_id"`
}

// Role is a Postgres role owned by a branch.
type Role struct {
	Name     string `json:"name"`
	BranchID string `json:"branch_id"`
}

// Database is a logical database owned by a branch.
type Database struct {
	Name      string `json:"name"`
	OwnerName string `json:"owner_name"`
	BranchID  string `json:"branch_id"`
}

type projectsResponse struct {
	Projects []Project `json:"projects"`
}

type branchesResponse struct {
	Branches []Branch `json:"branches"`
}

type endpointsResponse struct {
	Endpoints []Endpoint `json:"endpoints"`
}

type rolesResponse struct {
	Roles []Role `json:"roles"`
}

type databasesResponse struct {
	Databases []Database `json:"databases"`
}

type passwordResponse struct {
	Password string `json:"password"`
}
