package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Router manages multiple providers and routes model references to them.
//
// A model reference "<provider-id>/<model>" goes to that provider when one is
// registered under that id; any other reference goes to the default provider
// unchanged, so "library/model:tag" style names still work.
type Router struct {
	providers map[string]Provider
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider to the router. The first one becomes the default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider.
func (r *Router) SetDefault(providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[providerID]; !ok {
		return fmt.Errorf("unknown provider %q", providerID)
	}
	r.defaults = providerID
	return nil
}

// DefaultID returns the current default provider ID.
func (r *Router) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// Resolve returns the provider and bare model name for a model reference.
func (r *Router) Resolve(ref string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, model, ok := strings.Cut(ref, "/"); ok && model != "" {
		if p, found := r.providers[id]; found {
			return p, model, nil
		}
	}
	p, ok := r.providers[r.defaults]
	if !ok {
		return nil, "", fmt.Errorf("no provider available for model %s", ref)
	}
	return p, ref, nil
}

// Invoke routes the call to the resolved provider.
func (r *Router) Invoke(ctx context.Context, model, prompt string) (string, error) {
	p, bare, err := r.Resolve(model)
	if err != nil {
		return "", &InvocationError{Provider: "router", Model: model, Reason: err.Error(), Err: err}
	}
	return p.Invoke(ctx, bare, prompt)
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// ListProviders returns all registered providers sorted by ID.
func (r *Router) ListProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// New builds a provider from its config.
func New(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case "ollama":
		return NewOllamaProvider(cfg, logger), nil
	case "openai", "openai-compatible":
		return NewOpenAIProvider(cfg, logger), nil
	case "anthropic":
		return NewAnthropicProvider(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for %s", cfg.Type, cfg.ID)
	}
}
