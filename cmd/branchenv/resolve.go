package main

import (
	"fmt"
	"os"

	"github.com/splax/branchenv/internal/connection"
	"github.com/splax/branchenv/internal/neon"
	"github.com/splax/branchenv/internal/orchestrator"
	"github.com/splax/branchenv/internal/project"
)

const redactedPassword = "REDACTED"

type resolveCommand struct {
	*app `no-flag:"true"`
}

type branchDetails struct {
	BranchID   string `json:"branchId"`
	EndpointID string `json:"endpointId,omitempty"`
	Host       string `json:"host,omitempty"`
	Role       string `json:"role,omitempty"`
	Database   string `json:"database,omitempty"`
	URI        string `json:"uri,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (c *resolveCommand) Execute(args []string) error {
	cfg, log, err := c.bootstrap("branchenv")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	api, err := neon.New(cfg.NeonAPIToken.Reveal(), neon.WithBaseURL(cfg.NeonAPIURL))
	if err != nil {
		return err
	}

	lookup := project.New(api)
	proj, err := lookup.Resolve(c.ctx, cfg.NeonProjectName)
	if err != nil {
		return err
	}
	branches, err := lookup.ListBranches(c.ctx, proj)
	if err != nil {
		return err
	}

	builder := connection.NewBuilder(nil)
	resolver := connection.NewResolver(api, builder)
	opts := orchestrator.ConnectionOptions(cfg)
	out := make(map[string]branchDetails, len(branches))
	failed := false
	for _, branch := range branches {
		details, err := resolver.Details(c.ctx, proj, branch, opts)
		if err != nil {
			log.Warn("branch unresolved", "branch", branch.Name, "branch_id", branch.ID, "error", err)
			out[branch.Name] = branchDetails{BranchID: branch.ID, Error: err.Error()}
			failed = true
			continue
		}
		out[branch.Name] = describe(builder, branch, details, opts)
	}
	if err := writeJSON(os.Stdout, out); err != nil {
		return err
	}
	if failed {
		return errBranchFailures
	}
	return nil
}

// describe renders details with the password replaced by a fixed placeholder.
func describe(builder connection.Builder, branch neon.Branch, details connection.Details, opts connection.Options) branchDetails {
	d := branchDetails{
		BranchID:   branch.ID,
		EndpointID: details.Endpoint.ID,
		Host:       details.Endpoint.Host,
		Role:       details.Role,
		Database:   details.Database,
	}
	uri, err := builder.Build(details.Endpoint.Host, details.Endpoint.ID, details.Role, redactedPassword, details.Database, opts.Pooled, opts.SSL)
	if err != nil {
		d.Error = err.Error()
		return d
	}
	d.URI = uri
	return d
}
