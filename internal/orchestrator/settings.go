package orchestrator

import (
	"github.com/samber/mo"

	"github.com/splax/branchenv/internal/connection"
	"github.com/splax/branchenv/internal/neon"
	"github.com/splax/branchenv/internal/ports"
	"github.com/splax/branchenv/pkg/config"
)

const (
	envDatabaseURL   = "HASURA_GRAPHQL_DATABASE_URL"
	envEnableConsole = "HASURA_GRAPHQL_ENABLE_CONSOLE"
	envAdminSecret   = "HASURA_GRAPHQL_ADMIN_SECRET"

	labelProject = "branchenv.project"
	labelBranch  = "branchenv.branch"

	networkMode = "bridge"
)

// Settings is the per-run configuration handed to the orchestrator.
type Settings struct {
	ProjectName        string
	BaseURL            string
	AdminSecret        config.Secret
	Image              string
	NamePrefix         string
	InternalPort       int
	Ports              ports.Range
	Connection         connection.Options
	Concurrency        int
	FailFast           bool
	IgnoreImageChanges bool
}

// SettingsFromConfig maps the environment configuration onto Settings.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		ProjectName:        cfg.NeonProjectName,
		BaseURL:            cfg.BaseURL,
		AdminSecret:        cfg.HasuraSecretKey,
		Image:              cfg.Image,
		NamePrefix:         cfg.NamePrefix,
		InternalPort:       cfg.InternalPort,
		Ports:              ports.Range{Min: cfg.PortMin, Max: cfg.PortMax},
		Connection:         ConnectionOptions(cfg),
		Concurrency:        cfg.Concurrency,
		FailFast:           cfg.FailFast,
		IgnoreImageChanges: cfg.IgnoreImageChanges,
	}
}

// ConnectionOptions turns the optional overrides of cfg into connection.Options.
func ConnectionOptions(cfg config.Config) connection.Options {
	opts := connection.Options{
		Database:     optional(cfg.DatabaseName),
		Role:         optional(cfg.NeonRoleName),
		EndpointType: mo.None[neon.EndpointType](),
		Pooled:       cfg.Pooled,
		SSL:          connection.SSLMode(cfg.SSLMode),
	}
	if cfg.NeonEndpointType != "" {
		opts.EndpointType = mo.Some(neon.EndpointType(cfg.NeonEndpointType))
	}
	return opts
}

func optional(value string) mo.Option[string] {
	if value == "" {
		return mo.None[string]()
	}
	return mo.Some(value)
}
