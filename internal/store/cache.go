package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/crew/internal/cache"
)

var _ cache.Cache = (*Store)(nil)

// Get returns the cached document for prompt.
func (s *Store) Get(ctx context.Context, prompt string) (*cache.Entry, error) {
	e := &cache.Entry{Prompt: prompt}
	err := s.db.QueryRow(ctx,
		`SELECT content, tag, updated_at FROM prompt_cache WHERE prompt = $1`, prompt,
	).Scan(&e.Content, &e.Tag, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return e, nil
}

// Put upserts the document for prompt.
func (s *Store) Put(ctx context.Context, prompt string, content []byte, tag string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO prompt_cache (prompt, content, tag, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (prompt) DO UPDATE SET
			content = EXCLUDED.content,
			tag = EXCLUDED.tag,
			updated_at = now()`,
		prompt, content, tag,
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}
