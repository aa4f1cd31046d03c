package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/branchenv/db"
	"github.com/splax/branchenv/internal/app/migrate"
)

type migrateCommand struct {
	*app `no-flag:"true"`

	Command string        `long:"command" description:"migrate command" choice:"up" choice:"status" choice:"down" default:"up"`
	Target  int64         `long:"target" description:"target version for down (optional)"`
	Timeout time.Duration `long:"timeout" description:"command timeout" default:"1m"`
}

func (c *migrateCommand) Execute(args []string) error {
	cfg, log, err := c.bootstrap("migrate")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.Timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.StateDatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return err
	}
	defer pool.Close()

	runner, err := migrate.New(pool, cfg.StateDatabaseURL, db.Migrations, db.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migration runner", "error", err)
		return err
	}

	switch c.Command {
	case "up":
		err = runner.Ensure(ctx)
	case "status":
		err = runner.Status(ctx)
	case "down":
		err = runner.Down(ctx, c.Target)
	default:
		err = fmt.Errorf("unsupported command %q", c.Command)
	}
	if err != nil {
		log.Error("migration command failed", "command", c.Command, "error", err)
		return err
	}
	log.Info("migration command completed", "command", c.Command)
	return nil
}
