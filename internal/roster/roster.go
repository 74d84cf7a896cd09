package roster

import (
	"errors"
	"fmt"
)

// ErrConfiguration reports a malformed roster.
var ErrConfiguration = errors.New("invalid roster configuration")

// AgentSpec names one agent and the model backing it.
type AgentSpec struct {
	Name  string `json:"name" yaml:"name"`
	Model string `json:"model" yaml:"model"`
}

// Registry is an immutable, ordered roster of agents.
type Registry struct {
	agents []AgentSpec
	index  map[string]int
}

// New validates specs and builds a Registry. Names must be unique.
func New(specs []AgentSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: roster is empty", ErrConfiguration)
	}
	r := &Registry{
		agents: make([]AgentSpec, len(specs)),
		index:  make(map[string]int, len(specs)),
	}
	for i, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: agent #%d has no name", ErrConfiguration, i)
		}
		if s.Model == "" {
			return nil, fmt.Errorf("%w: agent %q has no model", ErrConfiguration, s.Name)
		}
		if prev, dup := r.index[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate agent name %q (entries #%d and #%d)",
				ErrConfiguration, s.Name, prev, i)
		}
		r.index[s.Name] = i
		r.agents[i] = s
	}
	return r, nil
}

// Default returns the five-agent crew the tool ships with.
func Default() *Registry {
	r, err := New(DefaultAgents())
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultAgents lists the built-in crew.
func DefaultAgents() []AgentSpec {
	return []AgentSpec{
		{Name: "core", Model: "gemma3:1b"},
		{Name: "loop", Model: "gemma3:1b"},
		{Name: "wave", Model: "deepseek-coder"},
		{Name: "coin", Model: "gemma3:1b"},
		{Name: "code", Model: "deepseek-coder"},
	}
}

// Agents returns a copy of the roster in configured order.
func (r *Registry) Agents() []AgentSpec {
	out := make([]AgentSpec, len(r.agents))
	copy(out, r.agents)
	return out
}

// Get looks up an agent by name.
func (r *Registry) Get(name string) (AgentSpec, bool) {
	i, ok := r.index[name]
	if !ok {
		return AgentSpec{}, false
	}
	return r.agents[i], true
}

// Len returns the roster size.
func (r *Registry) Len() int { return len(r.agents) }
