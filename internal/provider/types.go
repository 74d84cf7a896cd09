package provider

import (
	"context"
	"fmt"
	"time"
)

// Invoker turns a prompt into model output. Implementations may block for
// an arbitrary duration; callers bound them with ctx.
type Invoker interface {
	Invoke(ctx context.Context, model, prompt string) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, model, prompt string) (string, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, model, prompt string) (string, error) {
	return f(ctx, model, prompt)
}

// Provider is a named model backend.
type Provider interface {
	Invoker
	ID() string
	Name() string
	HealthCheck(ctx context.Context) error
}

// InvocationError reports a failed model call: the process exited non-zero,
// the transport failed, or the response was unusable.
type InvocationError struct {
	Provider string
	Model    string
	Reason   string
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s/%s: %s", e.Provider, e.Model, e.Reason)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ProviderConfig holds configuration for a provider instance.
type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Models   []string          `json:"models,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Timeout  time.Duration     `json:"timeout,omitempty"`
}

func (c ProviderConfig) displayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
