package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/branchenv/db"
	"github.com/splax/branchenv/internal/app/migrate"
	"github.com/splax/branchenv/internal/ports"
	"github.com/splax/branchenv/pkg/config"
)

// portStore pairs an allocator with the cleanup for its backing connection.
type portStore struct {
	allocator ports.Allocator
	close     func()
}

func openPortStore(ctx context.Context, cfg config.Config, log *slog.Logger) (portStore, error) {
	switch cfg.PortStore {
	case config.PortStoreMemory:
		log.Warn("using in-memory port store; allocations are not persisted")
		return portStore{allocator: ports.NewMemory(), close: func() {}}, nil
	case config.PortStoreRedis:
		store, err := ports.NewRedis(ctx, cfg.StateRedisAddr, cfg.StateRedisPassword.Reveal(), cfg.StateRedisDB)
		if err != nil {
			return portStore{}, err
		}
		return portStore{allocator: store, close: func() { _ = store.Close() }}, nil
	case config.PortStorePostgres:
		pool, err := pgxpool.New(ctx, cfg.StateDatabaseURL)
		if err != nil {
			return portStore{}, fmt.Errorf("connect port store: %w", err)
		}
		runner, err := migrate.New(pool, cfg.StateDatabaseURL, db.Migrations, db.MigrationsDir, log)
		if err != nil {
			pool.Close()
			return portStore{}, err
		}
		if err := runner.Ping(ctx); err != nil {
			pool.Close()
			return portStore{}, fmt.Errorf("port store ping: %w", err)
		}
		if err := runner.Ensure(ctx); err != nil {
			pool.Close()
			return portStore{}, err
		}
		return portStore{allocator: ports.NewPostgres(pool), close: pool.Close}, nil
	default:
		return portStore{}, fmt.Errorf("unsupported port store %q", cfg.PortStore)
	}
}

// lazyStore opens the port store on the first allocation, so runs that stop
// before any branch needs a port never connect to it or migrate its schema.
type lazyStore struct {
	open func(ctx context.Context) (portStore, error)

	once  sync.Once
	store portStore
	err   error
}

func newLazyStore(open func(ctx context.Context) (portStore, error)) *lazyStore {
	return &lazyStore{open: open}
}

// Allocate implements ports.Allocator.
func (l *lazyStore) Allocate(ctx context.Context, key string, r ports.Range) (int, error) {
	l.once.Do(func() { l.store, l.err = l.open(ctx) })
	if l.err != nil {
		return 0, l.err
	}
	return l.store.allocator.Allocate(ctx, key, r)
}

// close releases the store if it was ever opened. Call it once allocations have stopped.
func (l *lazyStore) close() {
	if l.store.close != nil {
		l.store.close()
	}
}
