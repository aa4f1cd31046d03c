package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres persists allocations in the port_allocations table.
type Postgres struct {
	pool *pgxpool.Pool
	rnd  func(n int) int
}

// NewPostgres returns an allocator backed by pool. The schema is managed by
// the migrations under db/migrations.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, rnd: defaultRand}
}

// Allocate implements Allocator.
func (p *Postgres) Allocate(ctx context.Context, key string, r Range) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	if err := r.validate(); err != nil {
		return 0, err
	}
	port, err := p.lookup(ctx, key)
	switch {
	case err == nil && r.contains(port):
		return port, nil
	case err == nil:
		if err := p.release(ctx, key); err != nil {
			return 0, err
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return 0, fmt.Errorf("lookup port for %s: %w", key, err)
	}

	port, err = probe(ctx, r, p.rnd, func(ctx context.Context, candidate int) (bool, error) {
		return p.claim(ctx, key, candidate)
	})
	if errors.Is(err, errKeyClaimed) {
		return p.lookup(ctx, key)
	}
	if err != nil {
		return 0, fmt.Errorf("allocate port for %s: %w", key, err)
	}
	return port, nil
}

// Release forgets the allocation for key.
func (p *Postgres) Release(ctx context.Context, key string) error {
	return p.release(ctx, key)
}

func (p *Postgres) lookup(ctx context.Context, key string) (int, error) {
	const query = `SELECT port FROM port_allocations WHERE name = $1`
	var port int
	if err := p.pool.QueryRow(ctx, query, key).Scan(&port); err != nil {
		return 0, err
	}
	return port, nil
}

func (p *Postgres) release(ctx context.Context, key string) error {
	const query = `DELETE FROM port_allocations WHERE name = $1`
	if _, err := p.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("release port for %s: %w", key, err)
	}
	return nil
}

// claim inserts (key, port). A conflict on the port means another key holds
// it. A conflict on the name means a concurrent run allocated this key first.
func (p *Postgres) claim(ctx context.Context, key string, port int) (bool, error) {
	const query = `INSERT INTO port_allocations (name, port, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING
		RETURNING port`
	var stored int
	err := p.pool.QueryRow(ctx, query, key, port).Scan(&stored)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	if _, lookupErr := p.lookup(ctx, key); lookupErr == nil {
		return false, errKeyClaimed
	} else if !errors.Is(lookupErr, pgx.ErrNoRows) {
		return false, lookupErr
	}
	return false, nil
}
