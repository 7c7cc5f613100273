package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultCooldownBase    = 30 * time.Second
	defaultCooldownCeiling = 30 * time.Minute
)

// BackendHealth is the circuit-breaker state for one backend.
type BackendHealth struct {
	Failures      int
	CooldownUntil time.Time
}

// Registry fronts a fixed priority list of backends. Calls go to the first
// configured, non-cooling backend; transient failures trip that backend's
// breaker and fall through to the next one.
type Registry struct {
	clients []Client
	base    time.Duration
	ceiling time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	state map[Provider]*BackendHealth
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCooldown overrides the breaker's base delay and ceiling.
func WithCooldown(base, ceiling time.Duration) RegistryOption {
	return func(r *Registry) {
		r.base = base
		r.ceiling = ceiling
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry over clients in failover priority order.
func NewRegistry(clients []Client, opts ...RegistryOption) *Registry {
	r := &Registry{
		clients: clients,
		base:    defaultCooldownBase,
		ceiling: defaultCooldownCeiling,
		now:     time.Now,
		logger:  slog.Default(),
		state:   make(map[Provider]*BackendHealth, len(clients)),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, c := range clients {
		r.state[c.Provider()] = &BackendHealth{}
	}
	return r
}

// Complete tries each backend in priority order. A permanent failure returns
// immediately without failover: it signals misconfiguration, and hammering
// the next vendor won't fix it. When every backend is skipped or fails
// transiently, the error wraps ErrNoBackendAvailable.
func (r *Registry) Complete(ctx context.Context, messages []Message) (*Response, error) {
	var lastErr error

	for _, client := range r.clients {
		provider := client.Provider()
		if !client.Configured() {
			continue
		}
		if r.cooling(provider) {
			continue
		}

		resp, err := client.Complete(ctx, messages)
		if err == nil {
			r.recordSuccess(provider)
			return resp, nil
		}

		if IsTransient(err) {
			cooldown := r.recordFailure(provider)
			r.logger.Warn("backend failed, cooling down",
				"provider", provider, "cooldown", cooldown, "error", err)
			lastErr = err
			continue
		}

		// Permanent failure or caller cancellation.
		return nil, err
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: last failure: %v", ErrNoBackendAvailable, lastErr)
	}
	return nil, ErrNoBackendAvailable
}

// Health returns a snapshot of every backend's breaker state.
func (r *Registry) Health() map[Provider]BackendHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[Provider]BackendHealth, len(r.state))
	for p, h := range r.state {
		snapshot[p] = *h
	}
	return snapshot
}

func (r *Registry) cooling(p Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Before(r.state[p].CooldownUntil)
}

// recordFailure trips the breaker: cooldown doubles per consecutive failure
// up to the ceiling.
func (r *Registry) recordFailure(p Provider) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.state[p]
	cooldown := r.base << h.Failures
	if cooldown > r.ceiling || cooldown <= 0 {
		cooldown = r.ceiling
	}
	h.Failures++
	h.CooldownUntil = r.now().Add(cooldown)
	return cooldown
}

// recordSuccess resets the breaker fully; recovery is not gradual.
func (r *Registry) recordSuccess(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.state[p]
	h.Failures = 0
	h.CooldownUntil = time.Time{}
}
