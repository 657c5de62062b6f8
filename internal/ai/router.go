package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AttemptFunc is called after every provider attempt.
type AttemptFunc func(provider string, task TaskType, elapsed time.Duration, err error)

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithAttemptTimeout bounds each provider attempt. Zero leaves the caller's
// deadline as the only bound.
func WithAttemptTimeout(d time.Duration) RouterOption {
	return func(r *Router) { r.attemptTimeout = d }
}

// WithAttemptHook registers fn to observe provider attempts.
func WithAttemptHook(fn AttemptFunc) RouterOption {
	return func(r *Router) { r.onAttempt = fn }
}

// Router tries registered providers in registration order until one succeeds.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string

	attemptTimeout time.Duration
	onAttempt      AttemptFunc
}

func NewRouter(opts ...RouterOption) *Router {
	r := &Router{providers: make(map[string]Provider)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider. Re-registering a name replaces the provider and
// keeps its original position.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = provider
}

// Complete routes a request to the first provider that answers.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	order := append([]string(nil), r.order...)
	providers := make([]Provider, len(order))
	for i, name := range order {
		providers[i] = r.providers[name]
	}
	r.mu.RUnlock()

	if len(order) == 0 {
		return CompletionResponse{}, ErrNoProvider
	}

	var errs []error
	for i, name := range order {
		resp, err := r.attempt(ctx, name, providers[i], req)
		if err == nil {
			slog.Debug("ai request completed",
				"provider", name,
				"task", req.Task.String(),
				"model", resp.Model,
				"tokens", resp.TotalTokens(),
			)
			return resp, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		if ctx.Err() != nil {
			break
		}
		slog.Warn("ai provider failed, trying next",
			"provider", name,
			"task", req.Task.String(),
			"error", err,
		)
	}
	return CompletionResponse{}, fmt.Errorf("all ai providers failed: %w", errors.Join(errs...))
}

func (r *Router) attempt(ctx context.Context, name string, p Provider, req CompletionRequest) (CompletionResponse, error) {
	if r.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := p.Complete(ctx, req)
	if r.onAttempt != nil {
		r.onAttempt(name, req.Task, time.Since(start), err)
	}
	return resp, err
}

// HasProvider reports whether at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// Providers returns the registered provider names in fallback order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
