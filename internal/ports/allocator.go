package ports

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// ErrExhausted indicates every port in the range is taken.
var ErrExhausted = errors.New("ports: range exhausted")

// errKeyClaimed signals that a concurrent allocator stored the key first.
var errKeyClaimed = errors.New("ports: key allocated concurrently")

// maxRandomAttempts bounds random probing before a linear scan takes over.
const maxRandomAttempts = 64

// Range is an inclusive port interval.
type Range struct {
	Min int
	Max int
}

func (r Range) validate() error {
	if r.Min <= 0 || r.Max > 65535 || r.Min > r.Max {
		return fmt.Errorf("invalid port range %d-%d", r.Min, r.Max)
	}
	return nil
}

func (r Range) contains(port int) bool {
	return port >= r.Min && port <= r.Max
}

func (r Range) size() int {
	return r.Max - r.Min + 1
}

// Allocator hands out one stable port per key. The same key receives the same
// port on every call as long as it stays inside the requested range; two keys
// never share a port.
type Allocator interface {
	Allocate(ctx context.Context, key string, r Range) (int, error)
}

// claimFunc tries to bind port to key. It reports false when the port is
// already held by another key.
type claimFunc func(ctx context.Context, port int) (bool, error)

// probe picks random candidates first and falls back to scanning the range so
// that a nearly full range still converges.
func probe(ctx context.Context, r Range, rnd func(n int) int, claim claimFunc) (int, error) {
	attempts := maxRandomAttempts
	if attempts > r.size() {
		attempts = r.size()
	}
	for i := 0; i < attempts; i++ {
		port := r.Min + rnd(r.size())
		ok, err := claim(ctx, port)
		if err != nil {
			return 0, err
		}
		if ok {
			return port, nil
		}
	}
	start := rnd(r.size())
	for i := 0; i < r.size(); i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		port := r.Min + (start+i)%r.size()
		ok, err := claim(ctx, port)
		if err != nil {
			return 0, err
		}
		if ok {
			return port, nil
		}
	}
	return 0, ErrExhausted
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("allocation key cannot be empty")
	}
	return nil
}

func defaultRand(n int) int { return rand.IntN(n) }
