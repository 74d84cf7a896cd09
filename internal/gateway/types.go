package gateway

import (
	"context"
	"time"
)

// EventType categorizes round events.
type EventType string

const (
	EventRoundStarted   EventType = "round.started"
	EventAgentCompleted EventType = "agent.completed"
	EventRoundCompleted EventType = "round.completed"
)

// Event is one notification about a round in progress.
type Event struct {
	Type      EventType      `json:"type"`
	RoundID   string         `json:"round_id"`
	Agent     string         `json:"agent,omitempty"`
	Status    string         `json:"status,omitempty"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives events. Publish must be safe for concurrent use.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev Event) error
	Close() error
}
