// Package cache stores the merged document produced for a prompt so it can
// be fetched later without rerunning the round.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no entry exists for the prompt.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one cached document.
type Entry struct {
	Prompt    string    `json:"prompt"`
	Content   []byte    `json:"content"`
	Tag       string    `json:"tag"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cache is keyed by prompt text. Put is an upsert; the last write wins.
type Cache interface {
	Get(ctx context.Context, prompt string) (*Entry, error)
	Put(ctx context.Context, prompt string, content []byte, tag string) error
	Close() error
}
