package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/splax/branchenv/pkg/config"
	"github.com/splax/branchenv/pkg/logger"
)

var buildVersion = "dev"

// errBranchFailures signals a completed run in which at least one branch failed.
var errBranchFailures = errors.New("one or more branches failed")

type globalOptions struct {
	EnvFiles []string `long:"env-file" description:"dotenv file merged into the environment (repeatable)" default:".env"`
	LogLevel string   `long:"log-level" description:"overrides LOG_LEVEL (debug|info|warn|error)"`
	Version  bool     `long:"version" description:"print the version and exit"`
}

// app carries state shared by every subcommand.
type app struct {
	ctx  context.Context
	opts globalOptions
}

// bootstrap loads dotenv files and the environment configuration.
func (a *app) bootstrap(component string) (config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(a.opts.EnvFiles...); err != nil {
		return config.Config{}, nil, err
	}
	cfg := config.Load()
	if a.opts.LogLevel != "" {
		cfg.LogLevel = a.opts.LogLevel
	}
	return cfg, logger.New(component, logger.ParseLevel(cfg.LogLevel)), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{ctx: ctx}
	parser := flags.NewParser(&a.opts, flags.Default)
	parser.SubcommandsOptional = true
	mustAddCommand(parser, "apply", "Provision one container per branch",
		"Resolves every branch of the project and converges a GraphQL engine container for each.",
		&applyCommand{app: a})
	mustAddCommand(parser, "resolve", "Show per-branch connection details",
		"Resolves endpoint, role and database for every branch without touching docker or the port store.",
		&resolveCommand{app: a})
	mustAddCommand(parser, "migrate", "Manage the port store schema",
		"Applies, inspects or rolls back the postgres port allocation schema.",
		&migrateCommand{app: a})

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		stop()
		os.Exit(1)
	}
	if a.opts.Version {
		fmt.Println(buildVersion)
		return
	}
	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		stop()
		os.Exit(1)
	}
}

func mustAddCommand(parser *flags.Parser, name, short, long string, data any) {
	if _, err := parser.AddCommand(name, short, long, data); err != nil {
		panic(fmt.Sprintf("register command %s: %v", name, err))
	}
}
