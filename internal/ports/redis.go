package ports

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis persists allocations as two key families: name -> port and
// port -> name. SETNX on the port key is the claim.
type Redis struct {
	client *redis.Client
	prefix string
	rnd    func(n int) int
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisWithClient(client, "branchenv:"), nil
}

// NewRedisWithClient wraps an existing client; keys are namespaced by prefix.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, rnd: defaultRand}
}

func (r *Redis) nameKey(key string) string { return r.prefix + "port:name:" + key }
func (r *Redis) portKey(port int) string   { return r.prefix + "port:claim:" + strconv.Itoa(port) }

// Allocate implements Allocator.
func (r *Redis) Allocate(ctx context.Context, key string, rng Range) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	if err := rng.validate(); err != nil {
		return 0, err
	}
	port, err := r.lookup(ctx, key)
	switch {
	case err == nil && rng.contains(port):
		return port, nil
	case err == nil:
		if err := r.release(ctx, key, port); err != nil {
			return 0, err
		}
	case !errors.Is(err, redis.Nil):
		return 0, fmt.Errorf("lookup port for %s: %w", key, err)
	}

	port, err = probe(ctx, rng, r.rnd, func(ctx context.Context, candidate int) (bool, error) {
		return r.claim(ctx, key, candidate)
	})
	if errors.Is(err, errKeyClaimed) {
		return r.lookup(ctx, key)
	}
	if err != nil {
		return 0, fmt.Errorf("allocate port for %s: %w", key, err)
	}
	return port, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) lookup(ctx context.Context, key string) (int, error) {
	value, err := r.client.Get(ctx, r.nameKey(key)).Result()
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("corrupt port value %q for %s: %w", value, key, err)
	}
	return port, nil
}

func (r *Redis) release(ctx context.Context, key string, port int) error {
	if err := r.client.Del(ctx, r.nameKey(key), r.portKey(port)).Err(); err != nil {
		return fmt.Errorf("release port for %s: %w", key, err)
	}
	return nil
}

func (r *Redis) claim(ctx context.Context, key string, port int) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.portKey(port), key, 0).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	stored, err := r.client.SetNX(ctx, r.nameKey(key), port, 0).Result()
	if err != nil {
		return false, err
	}
	if !stored {
		if err := r.client.Del(ctx, r.portKey(port)).Err(); err != nil {
			return false, err
		}
		return false, errKeyClaimed
	}
	return true, nil
}
