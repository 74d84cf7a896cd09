package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultHistory is how many events a Broadcaster remembers.
const DefaultHistory = 256

// Broadcaster fans events out to every registered sink and keeps a bounded
// history of what it sent.
type Broadcaster struct {
	sinks   []Sink
	history []Event
	limit   int
	mu      sync.RWMutex
	now     func() time.Time
	logger  *zap.Logger
}

// NewBroadcaster creates a broadcaster remembering up to limit events.
// limit <= 0 selects DefaultHistory.
func NewBroadcaster(limit int, logger *zap.Logger) *Broadcaster {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Broadcaster{limit: limit, now: time.Now, logger: logger}
}

// Add registers a sink.
func (b *Broadcaster) Add(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
	b.logger.Info("registered event sink", zap.String("sink", s.Name()))
}

// Publish delivers ev to all sinks. A failing sink does not stop delivery to
// the rest; their errors are joined.
func (b *Broadcaster) Publish(ctx context.Context, ev Event) error {
	if ev.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}

	b.mu.Lock()
	b.history = append(b.history, ev)
	if over := len(b.history) - b.limit; over > 0 {
		b.history = append(b.history[:0:0], b.history[over:]...)
	}
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Publish(ctx, ev); err != nil {
			b.logger.Warn("event delivery failed",
				zap.String("sink", s.Name()),
				zap.String("type", string(ev.Type)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// History returns up to limit of the most recent events, oldest first.
func (b *Broadcaster) History(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	out := make([]Event, limit)
	copy(out, b.history[len(b.history)-limit:])
	return out
}

// Sinks returns the names of registered sinks.
func (b *Broadcaster) Sinks() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.sinks))
	for _, s := range b.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Close shuts down all sinks.
func (b *Broadcaster) Close() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var errs []error
	for _, s := range b.sinks {
		if err := s.Close(); err != nil {
			b.logger.Error("sink close failed", zap.String("sink", s.Name()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
