package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/branchenv/internal/connection"
	"github.com/splax/branchenv/internal/docker"
	"github.com/splax/branchenv/internal/neon"
	"github.com/splax/branchenv/internal/orchestrator"
	"github.com/splax/branchenv/internal/project"
)

type applyCommand struct {
	*app `no-flag:"true"`
}

type applyDocument struct {
	RunID    string                         `json:"runId"`
	Project  string                         `json:"project"`
	Image    string                         `json:"image,omitempty"`
	Outputs  map[string]orchestrator.Output `json:"outputs"`
	Failures map[string]string              `json:"failures,omitempty"`
}

func newApplyDocument(result orchestrator.Result) applyDocument {
	doc := applyDocument{
		RunID:   result.RunID,
		Project: result.Project.Name,
		Image:   result.Image,
		Outputs: result.Outputs,
	}
	if len(result.Failures) > 0 {
		doc.Failures = make(map[string]string, len(result.Failures))
		for branch, err := range result.Failures {
			doc.Failures[branch] = err.Error()
		}
	}
	return doc
}

func (c *applyCommand) Execute(args []string) error {
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

	engine, err := docker.New(cfg.DockerHost)
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.Ping(c.ctx); err != nil {
		log.Error("docker daemon unreachable", "error", err)
		return err
	}

	store := newLazyStore(func(ctx context.Context) (portStore, error) {
		opened, err := openPortStore(ctx, cfg, log)
		if err != nil {
			log.Error("failed to open port store", "store", cfg.PortStore, "error", err)
		}
		return opened, err
	})
	defer store.close()

	registry := prometheus.NewRegistry()
	orch := orchestrator.New(
		project.New(api),
		connection.NewResolver(api, connection.NewBuilder(nil)),
		store,
		engine,
		orchestrator.SettingsFromConfig(cfg),
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(orchestrator.NewMetrics(registry)),
	)

	result, applyErr := orch.Apply(c.ctx)
	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, registry); err != nil {
			log.Warn("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}
	if applyErr != nil && result.Project.ID == "" {
		return applyErr
	}
	if err := writeJSON(os.Stdout, newApplyDocument(result)); err != nil {
		return err
	}
	if applyErr != nil {
		return applyErr
	}
	if len(result.Failures) > 0 {
		return errBranchFailures
	}
	return nil
}
