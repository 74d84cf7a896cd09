package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Cache.
type Memory struct {
	entries map[string]Entry
	mu      sync.RWMutex
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, prompt string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[prompt]
	if !ok {
		return nil, ErrNotFound
	}
	e.Content = append([]byte(nil), e.Content...)
	return &e, nil
}

func (m *Memory) Put(_ context.Context, prompt string, content []byte, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[prompt] = Entry{
		Prompt:    prompt,
		Content:   append([]byte(nil), content...),
		Tag:       tag,
		UpdatedAt: m.now(),
	}
	return nil
}

func (m *Memory) Close() error { return nil }
