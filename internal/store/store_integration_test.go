//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/nidhogg/crew/internal/cache"
	"github.com/nidhogg/crew/internal/orchestrator"
)

func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("crew_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("pg connection string: %v", err)
	}
	s, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	// Migrations are idempotent.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	return s
}

func TestPromptCache(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "p"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get on empty = %v, want ErrNotFound", err)
	}
	if err := s.Put(ctx, "p", []byte("one"), "t1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "p", []byte("two"), "t2"); err != nil {
		t.Fatal(err)
	}
	e, err := s.Get(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if string(e.Content) != "two" || e.Tag != "t2" {
		t.Errorf("got %q/%q, want two/t2", e.Content, e.Tag)
	}
}

func TestRounds(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()
	path := "results/final.html"
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, id := range []string{"r1", "r2"} {
		err := s.SaveRound(ctx, &orchestrator.Report{
			RoundID:      id,
			Status:       orchestrator.ReportOK,
			Prompt:       "hello",
			Agents:       []orchestrator.Result{{Agent: "core", Status: orchestrator.StatusSuccess, Output: "hi"}},
			ArtifactPath: &path,
			StartedAt:    base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListRounds(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].RoundID != "r2" {
		t.Fatalf("ListRounds = %d rounds, first %q", len(list), list[0].RoundID)
	}

	got, err := s.GetRound(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Agents[0].Output != "hi" || got.ArtifactPath == nil || *got.ArtifactPath != path {
		t.Errorf("GetRound = %+v", got)
	}

	if _, err := s.GetRound(ctx, "missing"); !errors.Is(err, ErrRoundNotFound) {
		t.Errorf("GetRound(missing) = %v", err)
	}
	if err := s.SaveRound(ctx, &orchestrator.Report{}); err == nil {
		t.Error("expected error for report without id")
	}
}
