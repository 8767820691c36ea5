// Package ratelimit enforces spec §5's "no more than N calls/window to
// provider P for user U" contract with an in-process token bucket per
// (user, provider), grounded directly on the loyverse connector.Client's
// rate.NewLimiter(rate.Every(...), burst) usage.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/saan/taskflow-agent/internal/domain"
)

// Limit is one provider's token-bucket shape.
type Limit struct {
	RefillPerSecond float64
	Burst           int
}

// Registry holds one *rate.Limiter per (user, provider), created lazily.
// A distributed deployment would replace this with a shared limiter
// backed by redis (spec §5); the contract it must honor stays the same.
type Registry struct {
	mu       sync.Mutex
	limits   map[domain.Provider]Limit
	limiters map[string]*rate.Limiter
}

func NewRegistry(limits map[domain.Provider]Limit) *Registry {
	return &Registry{
		limits:   limits,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a token is available for (user, provider), or ctx is
// done, whichever comes first.
func (r *Registry) Wait(ctx context.Context, user string, p domain.Provider) error {
	return r.limiterFor(user, p).Wait(ctx)
}

func (r *Registry) limiterFor(user string, p domain.Provider) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := user + "|" + string(p)
	if l, ok := r.limiters[key]; ok {
		return l
	}
	lim := r.limits[p]
	if lim.Burst <= 0 {
		lim.Burst = 1
	}
	if lim.RefillPerSecond <= 0 {
		lim.RefillPerSecond = 1
	}
	l := rate.NewLimiter(rate.Limit(lim.RefillPerSecond), lim.Burst)
	r.limiters[key] = l
	return l
}
