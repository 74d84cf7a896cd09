// Package store persists rounds and cached documents in PostgreSQL.
package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the crew database handle. It implements cache.Cache and
// keeps round history.
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// New opens a pool for dsn and verifies the server answers.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &Store{db: pool, logger: logger}, nil
}

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate applies the embedded *.up.sql files that are not yet recorded in
// schema_migrations. Each file runs in its own transaction together with
// its ledger row.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, ledgerDDL); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}

	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	// fs.Glob returns names in lexical order.
	for _, f := range files {
		version := strings.TrimSuffix(path.Base(f), ".up.sql")
		applied, err := s.apply(ctx, f, version)
		if err != nil {
			return err
		}
		if applied {
			s.logger.Info("Migration applied", zap.String("version", version))
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, file, version string) (bool, error) {
	data, err := migrations.ReadFile(file)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", version, err)
	}

	applied := false
	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, version)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("exec migration %s: %w", version, err)
	}
	return applied, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}
